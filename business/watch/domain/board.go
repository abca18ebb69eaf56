package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Row is the latest known state of one target.
type Row struct {
	Target     Target
	PriceUSD   decimal.Decimal
	Source     string
	Provider   string
	ObservedAt time.Time
	// Failures counts consecutive failed observations.
	Failures int
	LastErr  string
}

// Priced reports whether the row ever held a price.
func (r Row) Priced() bool {
	return r.PriceUSD.IsPositive()
}

// Board keeps one row per target in target order. A failed observation
// keeps the last good price and bumps the failure count. Not safe for
// concurrent use.
type Board struct {
	order []string
	rows  map[string]*Row
}

// NewBoard creates a board with an empty row per target.
func NewBoard(targets []Target) *Board {
	b := &Board{rows: make(map[string]*Row, len(targets))}
	for _, t := range targets {
		b.add(t)
	}
	return b
}

func (b *Board) add(t Target) *Row {
	r := &Row{Target: t}
	b.order = append(b.order, t.TokenID)
	b.rows[t.TokenID] = r
	return r
}

// Apply folds an observation into the board.
func (b *Board) Apply(o Observation) {
	r, ok := b.rows[o.Target.TokenID]
	if !ok {
		r = b.add(o.Target)
	}

	if !o.OK() {
		r.Failures++
		if o.Err != nil {
			r.LastErr = o.Err.Error()
		}
		return
	}

	r.PriceUSD = o.PriceUSD
	r.Source = o.Source
	r.Provider = o.Provider
	r.ObservedAt = o.ObservedAt
	r.Failures = 0
	r.LastErr = ""
}

// Rows returns copies of every row in target order.
func (b *Board) Rows() []Row {
	out := make([]Row, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, *b.rows[id])
	}
	return out
}
