package dbproxy

import (
	"github.com/ice-blockchain/go-dbproxy/balancer"
	"github.com/ice-blockchain/go-dbproxy/driver"
)

// Response is the outcome of a Request. Only the fields matching the
// request are set.
type Response struct {
	// Method of the request.
	Method string
	// Tag the query was labelled with.
	Tag string
	// Destination the request ran on.
	Destination balancer.Destination

	// Columns and Rows of a QueryRequest. Columns is also set for row and
	// value requests.
	Columns []string
	Rows    []driver.Row
	// Row of a RowRequest, nil when the query returned nothing.
	Row driver.Row
	// Value of a ValueRequest, TxRequest or MetaRequest.
	Value interface{}
	// Result of an ExecRequest.
	Result driver.Result
	// Stmt of a PrepareRequest.
	Stmt driver.Stmt

	// Failed is set when the driver failed and the error was swallowed.
	Failed bool

	debugResult interface{}
}
