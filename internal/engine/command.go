package engine

type commandType int

const (
	cmdSubmit commandType = iota
	cmdCancel
	cmdOrders
	cmdExecutions
	cmdPosition
)

// command is a single request serialized through the engine loop. The loop
// replies exactly once on resp.
type command struct {
	typ commandType

	order    *Order             // cmdSubmit
	symbol   string             // cmdCancel, cmdPosition
	orderID  string             // cmdCancel
	ordPred  OrderPredicate     // cmdOrders
	execPred ExecutionPredicate // cmdExecutions

	resp chan result
}

type result struct {
	order      OrderResponse
	orders     []Order
	executions []Execution
	position   *Position
	err        error
}
