package provider

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"tickfeed/internal/application/port"
)

// Dialect 描述一个 provider 的消息格式：信封判别字段、批量字段和各字段的别名。
// 每个别名列表按顺序取第一个可用值
type Dialect struct {
	TypeKeys   []string `toml:"type_keys"`   // 判别字段，如 type / event / ev
	TradeTypes []string `toml:"trade_types"` // 视为成交的判别值
	QuoteTypes []string `toml:"quote_types"` // 视为报价的判别值（无 price 时取 bid/ask 中间价）
	BatchKeys  []string `toml:"batch_keys"`  // 批量消息的数组字段，如 trades / data

	SymbolKeys        []string `toml:"symbol_keys"`
	PriceKeys         []string `toml:"price_keys"`
	ChangeKeys        []string `toml:"change_keys"`
	ChangePercentKeys []string `toml:"change_percent_keys"`
	TimestampKeys     []string `toml:"timestamp_keys"`
	BidKeys           []string `toml:"bid_keys"`
	AskKeys           []string `toml:"ask_keys"`
}

// Merge 用 override 中非空的列表覆盖当前 dialect
func (d Dialect) Merge(override Dialect) Dialect {
	pick := func(base, o []string) []string {
		if len(o) > 0 {
			return append([]string(nil), o...)
		}
		return base
	}
	d.TypeKeys = pick(d.TypeKeys, override.TypeKeys)
	d.TradeTypes = pick(d.TradeTypes, override.TradeTypes)
	d.QuoteTypes = pick(d.QuoteTypes, override.QuoteTypes)
	d.BatchKeys = pick(d.BatchKeys, override.BatchKeys)
	d.SymbolKeys = pick(d.SymbolKeys, override.SymbolKeys)
	d.PriceKeys = pick(d.PriceKeys, override.PriceKeys)
	d.ChangeKeys = pick(d.ChangeKeys, override.ChangeKeys)
	d.ChangePercentKeys = pick(d.ChangePercentKeys, override.ChangePercentKeys)
	d.TimestampKeys = pick(d.TimestampKeys, override.TimestampKeys)
	d.BidKeys = pick(d.BidKeys, override.BidKeys)
	d.AskKeys = pick(d.AskKeys, override.AskKeys)
	return d
}

// Parse 将一条原始消息归一化为 quotes。
//
// 非行情消息（鉴权应答、心跳、订阅确认）返回 nil, nil；
// 行情消息中所有记录都无效时返回 ErrMalformed
func (d Dialect) Parse(raw []byte) ([]port.Quote, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var records []map[string]any
	quoteKind := false

	switch msg := v.(type) {
	case []any:
		// 部分上游直接推送数组
		records = objects(msg)
		if len(records) == 0 {
			return nil, nil
		}
	case map[string]any:
		kind := d.kind(msg)
		if kind != "" && !d.isTrade(kind) && !d.isQuote(kind) {
			return nil, nil
		}
		quoteKind = d.isQuote(kind)

		batch, hasBatch := d.batch(msg)
		switch {
		case hasBatch:
			records = batch
			if len(records) == 0 {
				return nil, nil
			}
		case kind == "":
			return nil, nil
		default:
			records = []map[string]any{msg}
		}
	default:
		return nil, fmt.Errorf("%w: unexpected %T", ErrMalformed, v)
	}

	out := make([]port.Quote, 0, len(records))
	for _, rec := range records {
		recQuote := quoteKind
		if k := d.kind(rec); k != "" {
			if !d.isTrade(k) && !d.isQuote(k) {
				continue
			}
			recQuote = d.isQuote(k)
		}
		if q, ok := d.record(rec, recQuote); ok {
			out = append(out, q)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no valid record in %d", ErrMalformed, len(records))
	}
	return out, nil
}

func (d Dialect) kind(m map[string]any) string {
	for _, k := range d.TypeKeys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func (d Dialect) isTrade(kind string) bool { return containsFold(d.TradeTypes, kind) }
func (d Dialect) isQuote(kind string) bool { return containsFold(d.QuoteTypes, kind) }

func (d Dialect) batch(m map[string]any) ([]map[string]any, bool) {
	for _, k := range d.BatchKeys {
		if arr, ok := m[k].([]any); ok {
			return objects(arr), true
		}
	}
	return nil, false
}

func (d Dialect) record(m map[string]any, quote bool) (port.Quote, bool) {
	var q port.Quote

	q.Symbol = strings.ToUpper(strings.TrimSpace(firstString(m, d.SymbolKeys)))
	if q.Symbol == "" {
		return q, false
	}

	price, ok := firstPositive(m, d.PriceKeys)
	if !ok {
		// 报价消息没有成交价，取买卖中间价
		bid, okBid := firstPositive(m, d.BidKeys)
		ask, okAsk := firstPositive(m, d.AskKeys)
		switch {
		case okBid && okAsk:
			price, ok = (bid+ask)/2, true
		case quote && okBid:
			price, ok = bid, true
		case quote && okAsk:
			price, ok = ask, true
		}
	}
	if !ok {
		return q, false
	}
	q.Price = price

	change, okChange := firstNumber(m, d.ChangeKeys)
	pct, okPct := firstNumber(m, d.ChangePercentKeys)
	if okChange || okPct {
		q.HasChange = true
		q.Change = change
		q.ChangePercent = pct
		if !okPct && price-change > 0 {
			q.ChangePercent = change / (price - change) * 100
		}
	}

	if ts, ok := firstNumber(m, d.TimestampKeys); ok {
		q.Ts = normalizeMillis(ts)
	}
	return q, true
}

// normalizeMillis 将秒、毫秒、微秒或纳秒时间戳统一为毫秒
func normalizeMillis(v float64) int64 {
	switch {
	case v <= 0:
		return 0
	case v < 1e11:
		return int64(v * 1e3)
	case v < 1e14:
		return int64(v)
	case v < 1e17:
		return int64(v / 1e3)
	default:
		return int64(v / 1e6)
	}
}

func objects(arr []any) []map[string]any {
	out := make([]map[string]any, 0, len(arr))
	for _, e := range arr {
		if m, ok := e.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

func firstString(m map[string]any, keys []string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

func firstNumber(m map[string]any, keys []string) (float64, bool) {
	for _, k := range keys {
		if f, ok := number(m[k]); ok {
			return f, true
		}
	}
	return 0, false
}

func firstPositive(m map[string]any, keys []string) (float64, bool) {
	for _, k := range keys {
		if f, ok := number(m[k]); ok && f > 0 {
			return f, true
		}
	}
	return 0, false
}

// number 接受 JSON 数字或数字字符串
func number(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case string:
		p, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = p
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
