// Package test_helpers provides a scripted driver and other doubles used by
// the proxy tests.
package test_helpers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ice-blockchain/go-dbproxy/config"
	"github.com/ice-blockchain/go-dbproxy/driver"
	"github.com/ice-blockchain/go-dbproxy/driver/sqldb"
)

// MockDriverName is the name MockDriver.Registry registers the driver under.
const MockDriverName = "mock"

var ErrConnClosed = errors.New("mock: connection is closed")

// Call is one operation received by a MockConn.
type Call struct {
	// Method is one of query, exec, prepare, stmt_query, stmt_exec, begin,
	// commit, rollback and close.
	Method string
	Host   string
	Query  string
	Args   []interface{}
}

// MockResponse is what a MockConn answers to a query or an exec.
type MockResponse struct {
	Columns      []string
	Rows         [][]interface{}
	AffectedRows int64
	LastInsertID int64
}

// NewMockResponse returns rows for a query.
func NewMockResponse(columns []string, rows ...[]interface{}) *MockResponse {
	return &MockResponse{Columns: columns, Rows: rows}
}

// NewMockResult returns the outcome of an exec.
func NewMockResult(affected, lastID int64) *MockResponse {
	return &MockResponse{AffectedRows: affected, LastInsertID: lastID}
}

// MockError is a server error with a number.
type MockError struct {
	No  int
	Msg string
}

func (e *MockError) Error() string {
	return fmt.Sprintf("mock error %d: %s", e.No, e.Msg)
}

// Handler answers a call. A nil response is an empty result.
type Handler func(call Call) (*MockResponse, error)

// MockDriver opens MockConn connections and records every call made on
// them, across connections, in order.
type MockDriver struct {
	// Handler answers queries and execs. Without one every call succeeds
	// with an empty result.
	Handler Handler

	mu     sync.Mutex
	calls  []Call
	opened []*MockConn
	fail   map[string]error
}

var _ driver.Driver = (*MockDriver)(nil)

func NewMockDriver() *MockDriver {
	return &MockDriver{fail: make(map[string]error)}
}

// Registry returns a new registry holding only this driver, named
// MockDriverName.
func (d *MockDriver) Registry() *driver.Registry {
	r := driver.NewRegistry()
	r.Register(MockDriverName, d)
	return r
}

// Fail makes every later Open on host fail with err. A nil err heals the
// host.
func (d *MockDriver) Fail(host string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err == nil {
		delete(d.fail, host)
		return
	}
	d.fail[host] = err
}

func (d *MockDriver) Open(_ context.Context, node config.Node) (driver.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err, ok := d.fail[node.Host]; ok {
		return nil, err
	}
	conn := &MockConn{driver: d, node: node, ID: len(d.opened) + 1}
	d.opened = append(d.opened, conn)
	return conn, nil
}

// Opened returns every connection opened so far.
func (d *MockDriver) Opened() []*MockConn {
	d.mu.Lock()
	defer d.mu.Unlock()

	ret := make([]*MockConn, len(d.opened))
	copy(ret, d.opened)
	return ret
}

// Calls returns every call received so far.
func (d *MockDriver) Calls() []Call {
	d.mu.Lock()
	defer d.mu.Unlock()

	ret := make([]Call, len(d.calls))
	copy(ret, d.calls)
	return ret
}

// LastCall returns the last call received. It panics if there is none.
func (d *MockDriver) LastCall() Call {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.calls[len(d.calls)-1]
}

// Hosts returns the host of every query and exec call, in order.
func (d *MockDriver) Hosts() []string {
	var hosts []string
	for _, c := range d.Calls() {
		if c.Method == "query" || c.Method == "exec" {
			hosts = append(hosts, c.Host)
		}
	}
	return hosts
}

func (d *MockDriver) record(call Call) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.calls = append(d.calls, call)
}

func (d *MockDriver) handle(call Call) (*MockResponse, error) {
	d.record(call)
	if d.Handler == nil {
		return nil, nil
	}
	return d.Handler(call)
}

// MockConn is a connection of MockDriver.
type MockConn struct {
	// ID is the 1-based open order of the connection within its driver.
	ID int

	driver *MockDriver
	node   config.Node
	mode   driver.FetchMode
	inTx   bool
	closed bool

	affected int64
	lastID   int64
	errNo    int
	errMsg   string

	staleReads int
}

var _ driver.Conn = (*MockConn)(nil)

func (c *MockConn) Host() string                       { return c.node.Host }
func (c *MockConn) FetchMode() driver.FetchMode        { return c.mode }
func (c *MockConn) SetFetchMode(mode driver.FetchMode) { c.mode = mode }
func (c *MockConn) LastInsertID() int64                { return c.lastID }
func (c *MockConn) ErrorNo() int                       { return c.errNo }
func (c *MockConn) ErrorMsg() string                   { return c.errMsg }
func (c *MockConn) Quote(s string) string              { return sqldb.QuoteMySQL(s) }

func (c *MockConn) Database() string {
	c.checkOpen()
	return c.node.Name
}

func (c *MockConn) User() string {
	c.checkOpen()
	return c.node.User
}

func (c *MockConn) AffectedRows() int64 {
	c.checkOpen()
	return c.affected
}

func (c *MockConn) checkOpen() {
	if c.closed {
		c.staleReads++
	}
}

// StaleReads returns how many times Database, User or AffectedRows were
// called after Close.
func (c *MockConn) StaleReads() int { return c.staleReads }

// Closed reports whether Close was called.
func (c *MockConn) Closed() bool { return c.closed }

// InTx reports whether a transaction is open.
func (c *MockConn) InTx() bool { return c.inTx }

func (c *MockConn) track(err error) error {
	var me *MockError
	switch {
	case err == nil:
		c.errNo, c.errMsg = 0, ""
	case errors.As(err, &me):
		c.errNo, c.errMsg = me.No, me.Msg
	default:
		c.errNo, c.errMsg = -1, err.Error()
	}
	return err
}

func (c *MockConn) call(method, query string, args []interface{}) (*MockResponse, error) {
	if c.closed {
		return nil, c.track(ErrConnClosed)
	}
	resp, err := c.driver.handle(Call{
		Method: method,
		Host:   c.node.Host,
		Query:  query,
		Args:   args,
	})
	if err != nil {
		return nil, c.track(err)
	}
	if resp == nil {
		resp = &MockResponse{}
	}
	return resp, c.track(nil)
}

func (c *MockConn) query(method, query string, args []interface{}) (*driver.ResultSet, error) {
	resp, err := c.call(method, query, args)
	if err != nil {
		return nil, err
	}
	return driver.NewResultSet(resp.Columns, resp.Rows, c.mode), nil
}

func (c *MockConn) exec(method, query string, args []interface{}) (driver.Result, error) {
	resp, err := c.call(method, query, args)
	if err != nil {
		return driver.Result{}, err
	}
	c.affected, c.lastID = resp.AffectedRows, resp.LastInsertID
	return driver.Result{AffectedRows: resp.AffectedRows, LastInsertID: resp.LastInsertID}, nil
}

func (c *MockConn) Query(_ context.Context, query string, args ...interface{}) (*driver.ResultSet, error) {
	return c.query("query", query, args)
}

func (c *MockConn) Exec(_ context.Context, query string, args ...interface{}) (driver.Result, error) {
	return c.exec("exec", query, args)
}

func (c *MockConn) Prepare(_ context.Context, query string) (driver.Stmt, error) {
	if _, err := c.call("prepare", query, nil); err != nil {
		return nil, err
	}
	return &MockStmt{conn: c, query: query}, nil
}

func (c *MockConn) Begin(context.Context) error {
	if c.inTx {
		return driver.ErrTxInProgress
	}
	if _, err := c.call("begin", "", nil); err != nil {
		return err
	}
	c.inTx = true
	return nil
}

func (c *MockConn) Commit(context.Context) error {
	return c.endTx("commit")
}

func (c *MockConn) Rollback(context.Context) error {
	return c.endTx("rollback")
}

func (c *MockConn) endTx(method string) error {
	if !c.inTx {
		return driver.ErrNoTransaction
	}
	c.inTx = false
	_, err := c.call(method, "", nil)
	return err
}

func (c *MockConn) Close() error {
	if c.closed {
		return ErrConnClosed
	}
	c.driver.record(Call{Method: "close", Host: c.node.Host})
	c.closed = true
	c.inTx = false
	return nil
}

// MockStmt is a statement prepared on a MockConn.
type MockStmt struct {
	conn  *MockConn
	query string
}

func (s *MockStmt) Query(_ context.Context, args ...interface{}) (*driver.ResultSet, error) {
	return s.conn.query("stmt_query", s.query, args)
}

func (s *MockStmt) Exec(_ context.Context, args ...interface{}) (driver.Result, error) {
	return s.conn.exec("stmt_exec", s.query, args)
}

func (s *MockStmt) Close() error { return nil }

// QueryContains returns a handler answering resp to every call whose query
// contains substr and an empty result to others.
func QueryContains(substr string, resp *MockResponse, err error) Handler {
	return func(call Call) (*MockResponse, error) {
		if strings.Contains(call.Query, substr) {
			return resp, err
		}
		return nil, nil
	}
}
