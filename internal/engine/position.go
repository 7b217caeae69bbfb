package engine

// Apply folds a fill into the net position for its symbol.
//
// Same-side fills merge at the size-weighted average price. Opposite-side
// fills reduce the position: a partial close keeps the entry price, a full
// close removes the row, and an oversized close flips the side with the
// excess re-entered at the execution price.
func (l *PositionLedger) Apply(e Execution) {
	p, ok := l.Get(e.Symbol)
	if !ok {
		l.Set(Position{Symbol: e.Symbol, Side: e.Side, Price: e.Price, Size: e.Size})
		return
	}

	if p.Side == e.Side {
		size := p.Size.Add(e.Size)
		notional := p.Price.Mul(p.Size).Add(e.Price.Mul(e.Size))
		l.Set(Position{Symbol: e.Symbol, Side: p.Side, Price: notional.Div(size), Size: size})
		return
	}

	remaining := p.Size.Sub(e.Size)
	switch {
	case remaining.IsZero():
		l.Delete(e.Symbol)
	case remaining.IsPositive():
		l.Set(Position{Symbol: e.Symbol, Side: p.Side, Price: p.Price, Size: remaining})
	default:
		l.Set(Position{Symbol: e.Symbol, Side: e.Side, Price: e.Price, Size: remaining.Abs()})
	}
}
