package monitor

import (
	"strings"

	"github.com/shopspring/decimal"

	"tickfeed/internal/application"
	"tickfeed/internal/application/port"
	"tickfeed/internal/domain"
)

const (
	ansiReset    = "\033[0m"
	ansiRed      = "\033[31m"
	ansiGreen    = "\033[32m"
	ansiYellow   = "\033[33m"
	ansiCyan     = "\033[36m"
	ansiDim      = "\033[2m"
	ansiClearEOL = "\033[K"
)

func colorize(s, c string) string { return c + s + ansiReset }

type Formatter struct {
	Decimals int32
}

func NewFormatter(decimals int32) *Formatter {
	if decimals <= 0 {
		decimals = 2
	}
	return &Formatter{Decimals: decimals}
}

type RenderMode int

const (
	RenderLive RenderMode = iota
	RenderSnapshot
)

// Badge 状态标签和颜色
func Badge(status port.Status, provider string) (string, string) {
	switch status {
	case port.StatusCloudActive:
		return "CLOUD-NODE ACTIVE", ansiGreen
	case port.StatusConnected:
		return "LIVE FEED (" + strings.ToUpper(provider) + ")", ansiCyan
	case port.StatusConnecting, port.StatusReconnecting:
		return "HANDSHAKING...", ansiYellow
	case port.StatusSilent:
		return "SILENT", ansiYellow
	case port.StatusError:
		return "PROTO ERROR", ansiRed
	default:
		if provider == application.ProviderSimulation {
			return "OFFLINE (SIM)", ansiDim
		}
		return "OFFLINE", ansiDim
	}
}

// Render 渲染一行：状态标签 + 每个品种的价格和相对参考价涨跌幅
func (f *Formatter) Render(board *domain.Board, status port.Status, provider string, mode RenderMode) string {
	snap := board.GetSnapshot()
	symbols := board.GetSymbols()

	var sb strings.Builder
	if mode == RenderLive {
		sb.WriteString("\r")
	}

	label, col := Badge(status, provider)
	sb.WriteString(colorize("["+label+"] ", col))

	for i, sym := range symbols {
		if i > 0 {
			sb.WriteString(colorize("  |  ", ansiDim))
		}
		ps := snap[sym]

		px := "--"
		pxCol := ansiYellow
		if ps.HasValue {
			px = decimal.NewFromFloat(ps.Number).StringFixed(f.Decimals)
			switch ps.Direction {
			case domain.DirectionUp:
				pxCol = ansiGreen
			case domain.DirectionDown:
				pxCol = ansiRed
			}
		}

		chg := ""
		chgCol := ansiDim
		if ps.HasValue && ps.Reference > 0 {
			_, pct := ps.Change()
			d := decimal.NewFromFloat(pct).Round(2)
			chg = d.StringFixed(2) + "%"
			if d.IsPositive() {
				chg = "+" + chg
				chgCol = ansiGreen
			} else if d.IsNegative() {
				chgCol = ansiRed
			}
		}

		sb.WriteString(sym)
		sb.WriteString(" ")
		sb.WriteString(colorize(px, pxCol))
		if chg != "" {
			sb.WriteString(" ")
			sb.WriteString(colorize(chg, chgCol))
		}
	}

	if mode == RenderLive {
		sb.WriteString(ansiClearEOL)
	}
	return sb.String()
}
