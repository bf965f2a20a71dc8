package provider

import (
	"errors"
	"testing"
)

var testDialect = Dialect{
	TypeKeys:          []string{"type", "event"},
	TradeTypes:        []string{"trade"},
	QuoteTypes:        []string{"quote"},
	BatchKeys:         []string{"trades", "data"},
	SymbolKeys:        []string{"symbol", "s"},
	PriceKeys:         []string{"price", "p", "last"},
	ChangeKeys:        []string{"change", "d"},
	ChangePercentKeys: []string{"changePercent", "dp"},
	TimestampKeys:     []string{"t"},
	BidKeys:           []string{"bid"},
	AskKeys:           []string{"ask"},
}

func TestDialectParseSingleTrade(t *testing.T) {
	quotes, err := testDialect.Parse([]byte(`{"type":"trade","symbol":"aapl","price":182.5,"change":1.5,"changePercent":0.83}`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(quotes) != 1 {
		t.Fatalf("expected 1 quote, got %d", len(quotes))
	}
	q := quotes[0]
	if q.Symbol != "AAPL" || q.Price != 182.5 {
		t.Errorf("unexpected quote %+v", q)
	}
	if !q.HasChange || q.Change != 1.5 || q.ChangePercent != 0.83 {
		t.Errorf("expected change fields, got %+v", q)
	}
}

func TestDialectParseAliases(t *testing.T) {
	quotes, err := testDialect.Parse([]byte(`{"event":"trade","s":"MSFT","last":"405.10","d":-2}`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	q := quotes[0]
	if q.Symbol != "MSFT" || q.Price != 405.10 {
		t.Errorf("unexpected quote %+v", q)
	}
	if !q.HasChange || q.Change != -2 {
		t.Errorf("expected change -2, got %+v", q)
	}
	// percent 由 change 推导: -2 / 407.1
	if q.ChangePercent >= 0 {
		t.Errorf("expected negative percent, got %v", q.ChangePercent)
	}
}

func TestDialectParseBatch(t *testing.T) {
	raw := `{"type":"trade","data":[{"s":"AAPL","p":181,"t":1700000000},{"s":"","p":1},{"s":"TSLA","p":0},{"s":"NVDA","p":880.5,"t":1700000000123}]}`
	quotes, err := testDialect.Parse([]byte(raw))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(quotes) != 2 {
		t.Fatalf("expected 2 valid quotes, got %d: %+v", len(quotes), quotes)
	}
	if quotes[0].Symbol != "AAPL" || quotes[0].Ts != 1700000000000 {
		t.Errorf("unexpected first quote %+v", quotes[0])
	}
	if quotes[1].Symbol != "NVDA" || quotes[1].Ts != 1700000000123 {
		t.Errorf("unexpected second quote %+v", quotes[1])
	}
	if quotes[0].HasChange {
		t.Errorf("batch without change fields should not set HasChange")
	}
}

func TestDialectParseBatchWithoutType(t *testing.T) {
	quotes, err := testDialect.Parse([]byte(`{"trades":[{"symbol":"SPY","price":512.3}]}`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(quotes) != 1 || quotes[0].Symbol != "SPY" {
		t.Errorf("unexpected quotes %+v", quotes)
	}
}

func TestDialectParseQuoteMidpoint(t *testing.T) {
	quotes, err := testDialect.Parse([]byte(`{"type":"quote","symbol":"QQQ","bid":434,"ask":436}`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if quotes[0].Price != 435 {
		t.Errorf("expected midpoint 435, got %v", quotes[0].Price)
	}
}

func TestDialectParseControlMessages(t *testing.T) {
	tests := []string{
		`{"type":"ping"}`,
		`{"type":"auth_success","message":"ok"}`,
		`{"event":"subscribed","symbol":"AAPL"}`,
		`{"hello":"world"}`,
		`{"type":"trade","data":[]}`,
		`[]`,
	}
	for _, raw := range tests {
		quotes, err := testDialect.Parse([]byte(raw))
		if err != nil {
			t.Errorf("%s: unexpected error %v", raw, err)
		}
		if len(quotes) != 0 {
			t.Errorf("%s: expected no quotes, got %+v", raw, quotes)
		}
	}
}

func TestDialectParseMalformed(t *testing.T) {
	tests := []string{
		`not json`,
		`{"type":"trade","symbol":"AAPL"}`,
		`{"type":"trade","symbol":"AAPL","price":-3}`,
		`{"type":"trade","price":10}`,
		`{"type":"trade","symbol":"AAPL","price":"abc"}`,
		`"trade"`,
	}
	for _, raw := range tests {
		_, err := testDialect.Parse([]byte(raw))
		if !errors.Is(err, ErrMalformed) {
			t.Errorf("%s: expected ErrMalformed, got %v", raw, err)
		}
	}
}

func TestDialectMerge(t *testing.T) {
	d := testDialect.Merge(Dialect{PriceKeys: []string{"px"}})
	if len(d.PriceKeys) != 1 || d.PriceKeys[0] != "px" {
		t.Errorf("expected override price keys, got %v", d.PriceKeys)
	}
	if len(d.SymbolKeys) != 2 {
		t.Errorf("expected symbol keys kept, got %v", d.SymbolKeys)
	}

	quotes, err := d.Parse([]byte(`{"type":"trade","symbol":"GLD","px":198}`))
	if err != nil || len(quotes) != 1 || quotes[0].Price != 198 {
		t.Errorf("merged dialect parse: %+v, %v", quotes, err)
	}
}

func TestNormalizeMillis(t *testing.T) {
	tests := []struct {
		in   float64
		want int64
	}{
		{0, 0},
		{1700000000, 1700000000000},
		{1700000000123, 1700000000123},
		{1700000000123456, 1700000000123},
		{1700000000123456789, 1700000000123},
	}
	for _, tt := range tests {
		if got := normalizeMillis(tt.in); got != tt.want {
			t.Errorf("normalizeMillis(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
