package dbproxy

import (
	"context"

	"github.com/ice-blockchain/go-dbproxy/driver"
)

// Request is an operation forwarded by Database.Do. The set of requests is
// closed: QueryRequest, RowRequest, ValueRequest, ExecRequest,
// PrepareRequest, TxRequest, MetaRequest and CloseRequest.
type Request interface {
	// Method returns the name the operation is logged and recorded under.
	Method() string
	// SQL returns the query text, empty for operations without one.
	SQL() string
	// Params returns the bound parameters as given by the caller.
	Params() []interface{}

	tag() (string, bool)
	// alwaysMaster is set for results only meaningful on the server that
	// just wrote.
	alwaysMaster() bool
	// connects is false for operations that must not open a connection in
	// the current state of db.
	connects(db *Database) bool
	exec(ctx context.Context, db *Database, conn driver.Conn, query string, params []interface{}) (*Response, error)
}

type baseRequest struct {
	method  string
	query   string
	params  []interface{}
	tagText string
	tagged  bool
}

// Method returns the name of the operation.
func (req *baseRequest) Method() string {
	return req.method
}

// SQL returns the query text.
func (req *baseRequest) SQL() string {
	return req.query
}

// Params returns the bound parameters.
func (req *baseRequest) Params() []interface{} {
	return req.params
}

func (req *baseRequest) tag() (string, bool) {
	return req.tagText, req.tagged
}

func (req *baseRequest) setTag(tag string) {
	req.tagText, req.tagged = tag, true
}

func (req *baseRequest) alwaysMaster() bool      { return false }
func (req *baseRequest) connects(*Database) bool { return true }

// QueryRequest helps you to create a request returning every row of a
// query.
type QueryRequest struct {
	baseRequest
}

// NewQueryRequest returns a new QueryRequest.
func NewQueryRequest(query string) *QueryRequest {
	req := new(QueryRequest)
	req.method = "GetAll"
	req.query = query
	return req
}

// Args sets the bound parameters. A single slice argument is used as the
// parameter list itself.
func (req *QueryRequest) Args(args ...interface{}) *QueryRequest {
	req.params = args
	return req
}

// Tag sets the label appended to the query as a comment.
func (req *QueryRequest) Tag(tag string) *QueryRequest {
	req.setTag(tag)
	return req
}

func (req *QueryRequest) exec(ctx context.Context, _ *Database, conn driver.Conn, query string, params []interface{}) (*Response, error) {
	rs, err := conn.Query(ctx, query, params...)
	if err != nil {
		return nil, err
	}
	return &Response{Columns: rs.Columns, Rows: rs.Rows, debugResult: rs.Rows}, nil
}

// RowRequest helps you to create a request returning the first row of a
// query.
type RowRequest struct {
	baseRequest
}

// NewRowRequest returns a new RowRequest.
func NewRowRequest(query string) *RowRequest {
	req := new(RowRequest)
	req.method = "GetRow"
	req.query = query
	return req
}

// Args sets the bound parameters.
func (req *RowRequest) Args(args ...interface{}) *RowRequest {
	req.params = args
	return req
}

// Tag sets the label appended to the query as a comment.
func (req *RowRequest) Tag(tag string) *RowRequest {
	req.setTag(tag)
	return req
}

func (req *RowRequest) exec(ctx context.Context, _ *Database, conn driver.Conn, query string, params []interface{}) (*Response, error) {
	rs, err := conn.Query(ctx, query, params...)
	if err != nil {
		return nil, err
	}
	resp := &Response{Columns: rs.Columns, Row: rs.First()}
	if resp.Row != nil {
		resp.debugResult = []driver.Row{resp.Row}
	}
	return resp, nil
}

// ValueRequest helps you to create a request returning the first column of
// the first row of a query.
type ValueRequest struct {
	baseRequest
}

// NewValueRequest returns a new ValueRequest.
func NewValueRequest(query string) *ValueRequest {
	req := new(ValueRequest)
	req.method = "GetOne"
	req.query = query
	return req
}

// Args sets the bound parameters.
func (req *ValueRequest) Args(args ...interface{}) *ValueRequest {
	req.params = args
	return req
}

// Tag sets the label appended to the query as a comment.
func (req *ValueRequest) Tag(tag string) *ValueRequest {
	req.setTag(tag)
	return req
}

func (req *ValueRequest) exec(ctx context.Context, _ *Database, conn driver.Conn, query string, params []interface{}) (*Response, error) {
	rs, err := conn.Query(ctx, query, params...)
	if err != nil {
		return nil, err
	}
	resp := &Response{Columns: rs.Columns}
	if v, ok := rs.Scalar(); ok {
		resp.Value = v
		if v != nil {
			resp.debugResult = []interface{}{v}
		}
	}
	return resp, nil
}

// ExecRequest helps you to create a request running a statement that
// doesn't return rows.
type ExecRequest struct {
	baseRequest
}

// NewExecRequest returns a new ExecRequest.
func NewExecRequest(query string) *ExecRequest {
	req := new(ExecRequest)
	req.method = "Execute"
	req.query = query
	return req
}

// Args sets the bound parameters.
func (req *ExecRequest) Args(args ...interface{}) *ExecRequest {
	req.params = args
	return req
}

// Tag sets the label appended to the query as a comment.
func (req *ExecRequest) Tag(tag string) *ExecRequest {
	req.setTag(tag)
	return req
}

func (req *ExecRequest) exec(ctx context.Context, _ *Database, conn driver.Conn, query string, params []interface{}) (*Response, error) {
	res, err := conn.Exec(ctx, query, params...)
	if err != nil {
		return nil, err
	}
	return &Response{Result: res, debugResult: res}, nil
}

// PrepareRequest helps you to create a prepared statement. The statement is
// bound to the connection of the destination the query routes to.
type PrepareRequest struct {
	baseRequest
}

// NewPrepareRequest returns a new PrepareRequest.
func NewPrepareRequest(query string) *PrepareRequest {
	req := new(PrepareRequest)
	req.method = "Prepare"
	req.query = query
	return req
}

// Tag sets the label appended to the query as a comment.
func (req *PrepareRequest) Tag(tag string) *PrepareRequest {
	req.setTag(tag)
	return req
}

func (req *PrepareRequest) exec(ctx context.Context, _ *Database, conn driver.Conn, query string, _ []interface{}) (*Response, error) {
	stmt, err := conn.Prepare(ctx, query)
	if err != nil {
		return nil, err
	}
	return &Response{Stmt: stmt, debugResult: stmt}, nil
}

// TxAction is the transaction step of a TxRequest.
type TxAction uint32

const (
	// TxStart opens a transaction, or nests into the open one.
	TxStart TxAction = iota
	// TxComplete commits the outermost transaction, or rolls it back if it
	// failed. Response.Value is true when the transaction succeeded.
	TxComplete
	// TxFail marks the open transaction as failed.
	TxFail
)

var txMethods = map[TxAction]string{
	TxStart:    "StartTrans",
	TxComplete: "CompleteTrans",
	TxFail:     "FailTrans",
}

// TxRequest helps you to control smart transactions. Transactions nest:
// only the outermost start and complete reach the server, and any failed
// query in between makes the complete roll back.
type TxRequest struct {
	baseRequest
	action TxAction
}

// NewTxRequest returns a new TxRequest.
func NewTxRequest(action TxAction) *TxRequest {
	req := new(TxRequest)
	req.method = txMethods[action]
	req.action = action
	return req
}

// connects is false unless the server has to see the action: a start, or a
// complete while a transaction is open.
func (req *TxRequest) connects(db *Database) bool {
	switch req.action {
	case TxStart:
		return true
	case TxComplete:
		return db.tx.active()
	}
	return false
}

func (req *TxRequest) exec(ctx context.Context, db *Database, conn driver.Conn, _ string, _ []interface{}) (*Response, error) {
	var (
		ok  bool
		err error
	)
	switch req.action {
	case TxStart:
		ok, err = db.tx.start(ctx, conn)
	case TxComplete:
		ok, err = db.tx.complete(ctx, conn)
	case TxFail:
		ok = db.tx.fail()
	}
	if err != nil {
		return nil, err
	}
	return &Response{Value: ok, debugResult: ok}, nil
}

// MetaKind selects what a MetaRequest reads.
type MetaKind uint32

const (
	MetaAffectedRows MetaKind = iota
	MetaInsertID
	MetaErrorNo
	MetaErrorMsg
)

var metaMethods = map[MetaKind]string{
	MetaAffectedRows: "Affected_Rows",
	MetaInsertID:     "Insert_ID",
	MetaErrorNo:      "ErrorNo",
	MetaErrorMsg:     "ErrorMsg",
}

// MetaRequest helps you to read the outcome of the last operation of a
// connection. Affected rows and insert id are always read on the master.
type MetaRequest struct {
	baseRequest
	kind MetaKind
}

// NewMetaRequest returns a new MetaRequest.
func NewMetaRequest(kind MetaKind) *MetaRequest {
	req := new(MetaRequest)
	req.method = metaMethods[kind]
	req.kind = kind
	return req
}

func (req *MetaRequest) alwaysMaster() bool {
	return req.kind == MetaAffectedRows || req.kind == MetaInsertID
}

func (req *MetaRequest) exec(_ context.Context, _ *Database, conn driver.Conn, _ string, _ []interface{}) (*Response, error) {
	var v interface{}
	switch req.kind {
	case MetaAffectedRows:
		v = conn.AffectedRows()
	case MetaInsertID:
		v = conn.LastInsertID()
	case MetaErrorNo:
		v = conn.ErrorNo()
	case MetaErrorMsg:
		v = conn.ErrorMsg()
	}
	return &Response{Value: v, debugResult: v}, nil
}

// CloseRequest helps you to close the connection of the destination it
// routes to, which is the master in a profile deployment. The next request
// to that destination reconnects. Nothing happens if the connection isn't
// open.
type CloseRequest struct {
	baseRequest
}

// NewCloseRequest returns a new CloseRequest.
func NewCloseRequest() *CloseRequest {
	req := new(CloseRequest)
	req.method = "Close"
	return req
}

func (req *CloseRequest) connects(*Database) bool { return false }

func (req *CloseRequest) exec(_ context.Context, db *Database, _ driver.Conn, _ string, _ []interface{}) (*Response, error) {
	db.tx.reset()
	if err := db.pool.Close(db.router.Current()); err != nil {
		return nil, err
	}
	return &Response{}, nil
}
