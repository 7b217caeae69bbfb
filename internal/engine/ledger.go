package engine

// The three ledgers are plain in-memory stores owned by the engine goroutine.
// All mutation happens on that goroutine, so none of them lock.

type OrderPredicate func(Order) bool

type ExecutionPredicate func(Execution) bool

type PositionPredicate func(Position) bool

// OrderLedger stores resting orders keyed by id. Iteration follows insertion
// order, which is the order matching steps visit orders in.
type OrderLedger struct {
	ids  []string
	byID map[string]*Order
}

func NewOrderLedger() *OrderLedger {
	return &OrderLedger{byID: make(map[string]*Order)}
}

func (l *OrderLedger) Insert(o *Order) {
	if _, ok := l.byID[o.ID]; !ok {
		l.ids = append(l.ids, o.ID)
	}
	l.byID[o.ID] = o
}

func (l *OrderLedger) Delete(id string) bool {
	if _, ok := l.byID[id]; !ok {
		return false
	}
	delete(l.byID, id)
	for i, v := range l.ids {
		if v == id {
			l.ids = append(l.ids[:i], l.ids[i+1:]...)
			break
		}
	}
	return true
}

func (l *OrderLedger) Get(id string) (Order, bool) {
	o, ok := l.byID[id]
	if !ok {
		return Order{}, false
	}
	return *o, true
}

// Find returns copies of all orders matching pred, in insertion order. A nil
// predicate matches everything.
func (l *OrderLedger) Find(pred OrderPredicate) []Order {
	out := make([]Order, 0, len(l.ids))
	for _, id := range l.ids {
		o := l.byID[id]
		if pred == nil || pred(*o) {
			out = append(out, *o)
		}
	}
	return out
}

func (l *OrderLedger) Len() int { return len(l.ids) }

// ExecutionLedger is an append-only fill history.
type ExecutionLedger struct {
	rows []Execution
}

func NewExecutionLedger() *ExecutionLedger {
	return &ExecutionLedger{}
}

func (l *ExecutionLedger) Insert(e Execution) {
	l.rows = append(l.rows, e)
}

func (l *ExecutionLedger) Find(pred ExecutionPredicate) []Execution {
	out := make([]Execution, 0, len(l.rows))
	for _, e := range l.rows {
		if pred == nil || pred(e) {
			out = append(out, e)
		}
	}
	return out
}

func (l *ExecutionLedger) Len() int { return len(l.rows) }

// PositionLedger holds at most one row per symbol.
type PositionLedger struct {
	bySymbol map[string]Position
}

func NewPositionLedger() *PositionLedger {
	return &PositionLedger{bySymbol: make(map[string]Position)}
}

func (l *PositionLedger) Set(p Position) {
	l.bySymbol[p.Symbol] = p
}

func (l *PositionLedger) Delete(symbol string) {
	delete(l.bySymbol, symbol)
}

func (l *PositionLedger) Get(symbol string) (Position, bool) {
	p, ok := l.bySymbol[symbol]
	return p, ok
}

func (l *PositionLedger) Find(pred PositionPredicate) []Position {
	out := make([]Position, 0, len(l.bySymbol))
	for _, p := range l.bySymbol {
		if pred == nil || pred(p) {
			out = append(out, p)
		}
	}
	return out
}
