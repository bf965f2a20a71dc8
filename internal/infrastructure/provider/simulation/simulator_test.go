package simulation

import (
	"context"
	"errors"
	"testing"
	"time"

	"tickfeed/internal/infrastructure/provider"
)

type fixedRand struct {
	f float64
	n int
}

func (r fixedRand) Float64() float64 { return r.f }
func (r fixedRand) IntN(int) int     { return r.n }

func TestSimulatorEmitsBoundedTicks(t *testing.T) {
	sim := New(Config{Interval: 10 * time.Millisecond, MaxTick: 0.0005, Rand: fixedRand{f: 1, n: 1}})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conn, err := sim.Connect(ctx)
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer conn.Close()
	if err := sim.Subscribe(ctx, conn, []string{"AAPL", "MSFT"}); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	raw, err := conn.ReadMessage(ctx)
	if err != nil {
		t.Fatalf("ReadMessage failed: %v", err)
	}
	quotes, err := sim.Parse(raw)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	q := quotes[0]
	if !q.Synthetic || q.Price != 0 {
		t.Errorf("expected synthetic quote without price, got %+v", q)
	}
	if q.Symbol != "MSFT" {
		t.Errorf("expected MSFT, got %s", q.Symbol)
	}
	if q.Tick != 0.0005 {
		t.Errorf("expected upper bound tick, got %v", q.Tick)
	}
}

func TestSimulatorTickRange(t *testing.T) {
	for _, f := range []float64{0, 0.25, 0.5, 0.999} {
		sim := New(Config{Rand: fixedRand{f: f}})
		_, tick := sim.next([]string{"SPY"})
		if tick < -0.0005 || tick > 0.0005 {
			t.Errorf("tick %v out of range for f=%v", tick, f)
		}
	}
}

func TestSimulatorCloseStopsReads(t *testing.T) {
	sim := New(Config{Interval: time.Hour})
	conn, _ := sim.Connect(context.Background())
	if err := sim.Subscribe(context.Background(), conn, []string{"SPY"}); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	_ = conn.Close()
	_ = conn.Close()

	if _, err := conn.ReadMessage(context.Background()); err == nil {
		t.Error("expected error after close")
	}
	if err := conn.WriteJSON(nil); err == nil {
		t.Error("expected write error after close")
	}
}

func TestSimulatorParseRejectsForeignMessages(t *testing.T) {
	sim := New(Config{})
	for _, raw := range []string{`{"type":"trade","symbol":"AAPL"}`, `{"type":"sim"}`, `nope`} {
		if _, err := sim.Parse([]byte(raw)); !errors.Is(err, provider.ErrMalformed) {
			t.Errorf("%s: expected ErrMalformed, got %v", raw, err)
		}
	}
}

func TestSimulatorSubscribeRequiresSymbols(t *testing.T) {
	sim := New(Config{})
	conn, _ := sim.Connect(context.Background())
	defer conn.Close()
	if err := sim.Subscribe(context.Background(), conn, nil); err == nil {
		t.Error("expected error for empty symbols")
	}
}
