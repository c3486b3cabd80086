package model

import "strings"

// BoardType 上市板块，决定涨跌幅限制
type BoardType string

const (
	BoardMain    BoardType = "main"    // 沪深主板
	BoardSTAR    BoardType = "star"    // 科创板 688/689
	BoardChiNext BoardType = "chinext" // 创业板 300/301
	BoardBSE     BoardType = "bse"     // 北交所 43x/83x/87x/92x
	BoardUnknown BoardType = "unknown"
)

// BoardOf classifies a stock code by its exchange prefix.
func BoardOf(code string) BoardType {
	switch {
	case code == "":
		return BoardUnknown
	case strings.HasPrefix(code, "688"), strings.HasPrefix(code, "689"):
		return BoardSTAR
	case strings.HasPrefix(code, "300"), strings.HasPrefix(code, "301"):
		return BoardChiNext
	case strings.HasPrefix(code, "43"), strings.HasPrefix(code, "83"),
		strings.HasPrefix(code, "87"), strings.HasPrefix(code, "92"):
		return BoardBSE
	case strings.HasPrefix(code, "60"), strings.HasPrefix(code, "00"):
		return BoardMain
	default:
		return BoardUnknown
	}
}

// IsST reports whether the security name marks it as special treatment.
func IsST(name string) bool {
	upper := strings.ToUpper(name)
	return strings.Contains(upper, "ST")
}

// LimitBand returns the daily limit-up/limit-down percentage for a board.
// ST caps only apply on the main board; STAR/ChiNext/BSE keep their wider
// bands regardless of ST status.
func LimitBand(board BoardType, st bool) float64 {
	switch board {
	case BoardSTAR, BoardChiNext:
		return 20
	case BoardBSE:
		return 30
	default:
		if st {
			return 5
		}
		return 10
	}
}
