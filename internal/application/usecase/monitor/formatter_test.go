package monitor

import (
	"strings"
	"testing"

	"tickfeed/internal/application/port"
	"tickfeed/internal/domain"
)

func TestFormatterRender(t *testing.T) {
	board := domain.NewBoard([]string{"AAPL", "MSFT", "GDX"}, map[string]float64{"AAPL": 180, "MSFT": 400})
	board.Apply("AAPL", 181.8, 0)
	board.Apply("MSFT", 396, 0)
	board.Apply("GDX", 29.8, 0)

	f := NewFormatter(2)
	line := f.Render(board, port.StatusConnected, "finnhub", RenderLive)

	if !strings.HasPrefix(line, "\r") || !strings.HasSuffix(line, ansiClearEOL) {
		t.Errorf("live line must rewrite the current line: %q", line)
	}
	for _, want := range []string{"LIVE FEED (FINNHUB)", "AAPL", "181.80", "+1.00%", "396.00", "-1.00%", "GDX", "29.80"} {
		if !strings.Contains(line, want) {
			t.Errorf("expected %q in %q", want, line)
		}
	}

	snap := f.Render(board, port.StatusConnected, "finnhub", RenderSnapshot)
	if strings.HasPrefix(snap, "\r") {
		t.Errorf("snapshot line must not start with carriage return")
	}
}

func TestFormatterPlaceholder(t *testing.T) {
	board := domain.NewBoard([]string{"SPY"}, nil)
	line := NewFormatter(0).Render(board, port.StatusDisconnected, "", RenderSnapshot)
	if !strings.Contains(line, "SPY "+colorize("--", ansiYellow)) {
		t.Errorf("expected placeholder price, got %q", line)
	}
}

func TestBadge(t *testing.T) {
	tests := []struct {
		status   port.Status
		provider string
		want     string
	}{
		{port.StatusCloudActive, "relay", "CLOUD-NODE ACTIVE"},
		{port.StatusConnected, "massive", "LIVE FEED (MASSIVE)"},
		{port.StatusConnecting, "massive", "HANDSHAKING..."},
		{port.StatusReconnecting, "finnhub", "HANDSHAKING..."},
		{port.StatusSilent, "massive", "SILENT"},
		{port.StatusError, "massive", "PROTO ERROR"},
		{port.StatusDisconnected, "simulation", "OFFLINE (SIM)"},
		{port.StatusDisconnected, "", "OFFLINE"},
	}
	for _, tt := range tests {
		if got, _ := Badge(tt.status, tt.provider); got != tt.want {
			t.Errorf("Badge(%s, %s) = %q, want %q", tt.status, tt.provider, got, tt.want)
		}
	}
}
