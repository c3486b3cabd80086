package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"mdagg/internal/application/port"
	"mdagg/internal/domain/model"
)

func newTestRepo(t *testing.T) *Repo {
	t.Helper()
	repo, err := New(filepath.Join(t.TempDir(), "mdagg.db"))
	if err != nil {
		t.Fatalf("failed to create repo: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSaveAndLastQuote(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	q := &model.Quote{
		Code: "600519", Name: "贵州茅台",
		Price: 1460.5, Open: 1450, High: 1465, Low: 1445, PrevClose: 1448,
		Volume: 28612, Amount: 4.17e9, Timestamp: time.Now().UnixMilli(),
	}
	if err := repo.SaveQuote(ctx, q); err != nil {
		t.Fatalf("SaveQuote failed: %v", err)
	}

	got, err := repo.LastQuote(ctx, "600519")
	if err != nil {
		t.Fatalf("LastQuote failed: %v", err)
	}
	if got.Price != 1460.5 || got.Name != "贵州茅台" {
		t.Errorf("unexpected quote: %+v", got)
	}
	if got.Change != 12.5 {
		t.Errorf("expected derived change 12.5, got %v", got.Change)
	}
}

func TestSaveQuoteReplacesPrevious(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	first := &model.Quote{Code: "600519", Price: 1450, Timestamp: 1}
	second := &model.Quote{Code: "600519", Price: 1460.5, Timestamp: 2}
	if err := repo.SaveQuote(ctx, first); err != nil {
		t.Fatalf("SaveQuote failed: %v", err)
	}
	if err := repo.SaveQuote(ctx, second); err != nil {
		t.Fatalf("SaveQuote failed: %v", err)
	}

	got, err := repo.LastQuote(ctx, "600519")
	if err != nil {
		t.Fatalf("LastQuote failed: %v", err)
	}
	if got.Price != 1460.5 || got.Timestamp != 2 {
		t.Errorf("expected replaced quote, got %+v", got)
	}
}

func TestLastQuoteMissing(t *testing.T) {
	repo := newTestRepo(t)
	_, err := repo.LastQuote(context.Background(), "000001")
	if !errors.Is(err, port.ErrNoData) {
		t.Errorf("expected ErrNoData, got %v", err)
	}
}

func TestSearchSecurities(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	secs := []model.Security{
		{Code: "600519", Name: "贵州茅台", Board: "main"},
		{Code: "000858", Name: "五粮液", Board: "main"},
		{Code: "688111", Name: "金山办公", Board: "star"},
	}
	for _, sec := range secs {
		if err := repo.UpsertSecurity(ctx, sec); err != nil {
			t.Fatalf("UpsertSecurity failed: %v", err)
		}
	}

	byCode, err := repo.SearchSecurities(ctx, "6005", 10)
	if err != nil {
		t.Fatalf("SearchSecurities failed: %v", err)
	}
	if len(byCode) != 1 || byCode[0].Code != "600519" {
		t.Errorf("code search: expected 600519, got %+v", byCode)
	}

	byName, err := repo.SearchSecurities(ctx, "茅台", 10)
	if err != nil {
		t.Fatalf("SearchSecurities failed: %v", err)
	}
	if len(byName) != 1 || byName[0].Name != "贵州茅台" {
		t.Errorf("name search: expected 贵州茅台, got %+v", byName)
	}
}

func TestUpsertSecurityIdempotent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.UpsertSecurity(ctx, model.Security{Code: "600519", Name: "旧名", Board: "main"}); err != nil {
		t.Fatalf("UpsertSecurity failed: %v", err)
	}
	if err := repo.UpsertSecurity(ctx, model.Security{Code: "600519", Name: "贵州茅台", Board: "main"}); err != nil {
		t.Fatalf("UpsertSecurity failed: %v", err)
	}

	got, err := repo.SearchSecurities(ctx, "600519", 10)
	if err != nil {
		t.Fatalf("SearchSecurities failed: %v", err)
	}
	if len(got) != 1 || got[0].Name != "贵州茅台" {
		t.Errorf("expected single updated row, got %+v", got)
	}
}
