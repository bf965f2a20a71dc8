package domain

// Direction represents the price movement direction
type Direction int

const (
	DirectionSame Direction = 0
	DirectionUp   Direction = +1
	DirectionDown Direction = -1
)

// PriceState holds the consumer-side state of a single symbol
type PriceState struct {
	Number    float64 // 当前价格
	Reference float64 // 参考（开盘）价，用于计算涨跌
	HasValue  bool
	Direction Direction
	Synthetic bool // 最后一次更新来自模拟 tick
}

// Apply 应用一次更新。price > 0 时直接取用；price == 0 时把 tick 作用于上一价格，
// 没有上一价格时以参考价为起点。返回价格是否变化
func (ps *PriceState) Apply(price, tick float64) bool {
	var n float64
	switch {
	case price > 0:
		n = price
		ps.Synthetic = false
	case ps.HasValue:
		n = ps.Number * (1 + tick)
		ps.Synthetic = true
	case ps.Reference > 0:
		n = ps.Reference * (1 + tick)
		ps.Synthetic = true
	default:
		return false
	}
	if !(n > 0) {
		return false
	}

	if !ps.HasValue {
		ps.HasValue = true
		ps.Number = n
		ps.Direction = DirectionSame
		return true
	}

	prev := ps.Number
	switch {
	case n > prev:
		ps.Direction = DirectionUp
	case n < prev:
		ps.Direction = DirectionDown
	default:
		ps.Direction = DirectionSame
	}
	ps.Number = n
	return n != prev
}

// Change 相对参考价的涨跌额与涨跌幅（%），没有参考价时为 0
func (ps PriceState) Change() (abs, pct float64) {
	if !ps.HasValue || ps.Reference <= 0 {
		return 0, 0
	}
	abs = ps.Number - ps.Reference
	return abs, abs / ps.Reference * 100
}
