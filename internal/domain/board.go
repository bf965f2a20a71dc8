package domain

import (
	"strings"
	"sync"
)

// Board manages consumer-side prices for the tracked symbols
type Board struct {
	mu      sync.RWMutex
	order   []string               // ordered symbol list
	symbols map[string]*PriceState // symbol -> state mapping
}

// NewBoard creates a new Board instance. refs seeds the reference price per symbol.
func NewBoard(symbols []string, refs map[string]float64) *Board {
	order := make([]string, 0, len(symbols))
	syms := make(map[string]*PriceState, len(symbols))

	for _, s := range symbols {
		u := strings.ToUpper(strings.TrimSpace(s))
		if u == "" {
			continue
		}
		if _, ok := syms[u]; ok {
			continue
		}
		order = append(order, u)
		syms[u] = &PriceState{Reference: refs[u]}
	}

	return &Board{
		order:   order,
		symbols: syms,
	}
}

// Apply updates a symbol from a stream observation.
// Returns true if the displayed price changed; unknown symbols are ignored.
func (b *Board) Apply(symbol string, price, tick float64) bool {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return false
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	ps := b.symbols[symbol]
	if ps == nil {
		return false
	}
	return ps.Apply(price, tick)
}

// Get returns a copy of a symbol's state
func (b *Board) Get(symbol string) (PriceState, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ps := b.symbols[strings.ToUpper(strings.TrimSpace(symbol))]
	if ps == nil {
		return PriceState{}, false
	}
	return *ps, true
}

// GetSnapshot returns a read-only snapshot of current state
func (b *Board) GetSnapshot() map[string]PriceState {
	b.mu.RLock()
	defer b.mu.RUnlock()

	snap := make(map[string]PriceState, len(b.symbols))
	for sym, state := range b.symbols {
		snap[sym] = *state
	}
	return snap
}

// GetSymbols returns ordered list of symbols
func (b *Board) GetSymbols() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	result := make([]string, len(b.order))
	copy(result, b.order)
	return result
}
