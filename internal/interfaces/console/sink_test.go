package console

import (
	"bytes"
	"testing"
	"time"
)

func TestSinkOutput(t *testing.T) {
	var buf bytes.Buffer
	s := NewSinkTo(&buf)

	_ = s.WriteLive("\rAAPL 181.00")
	ts := time.Date(2026, 1, 2, 9, 30, 0, 0, time.UTC)
	_ = s.WriteSnapshot(ts, "AAPL 181.00")
	_ = s.NewLine()

	want := "\rAAPL 181.00\n2026-01-02 09:30:00 AAPL 181.00\n\n\n"
	if got := buf.String(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
