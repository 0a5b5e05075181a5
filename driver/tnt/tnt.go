// Package tnt runs proxied SQL against Tarantool instances.
//
// Importing the package registers the driver as "tarantool". Node.Host is
// the instance address, Node.Name is informational only since Tarantool has
// no database namespace. Transactions run on an interactive stream.
//
// DECIMAL, UUID and DATETIME columns are returned as shopspring decimals,
// google uuids and time.Time, like the database/sql drivers do.
package tnt

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tarantool/go-tarantool"
	"github.com/tarantool/go-tarantool/datetime"
	"github.com/tarantool/go-tarantool/decimal"
	_ "github.com/tarantool/go-tarantool/uuid"

	"github.com/ice-blockchain/go-dbproxy/config"
	"github.com/ice-blockchain/go-dbproxy/driver"
)

// DefaultTimeout bounds every request on connections opened by Driver.
const DefaultTimeout = 5 * time.Second

func init() {
	driver.Register("tarantool", &Driver{})
}

type Driver struct {
	Timeout time.Duration
}

var _ driver.Driver = (*Driver)(nil)

func (d *Driver) Open(_ context.Context, node config.Node) (driver.Conn, error) {
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	conn, err := tarantool.Connect(node.Host, tarantool.Opts{
		User:    node.User,
		Pass:    node.Password,
		Timeout: timeout,
	})
	if err != nil {
		return nil, err
	}
	return &Conn{conn: conn, node: node}, nil
}

// Conn is one Tarantool connection.
type Conn struct {
	conn   *tarantool.Connection
	stream *tarantool.Stream
	node   config.Node
	mode   driver.FetchMode

	affected int64
	lastID   int64
	errNo    int
	errMsg   string
}

var _ driver.Conn = (*Conn)(nil)

func (c *Conn) Host() string                       { return c.node.Host }
func (c *Conn) Database() string                   { return c.node.Name }
func (c *Conn) User() string                       { return c.node.User }
func (c *Conn) FetchMode() driver.FetchMode        { return c.mode }
func (c *Conn) SetFetchMode(mode driver.FetchMode) { c.mode = mode }
func (c *Conn) AffectedRows() int64                { return c.affected }
func (c *Conn) LastInsertID() int64                { return c.lastID }
func (c *Conn) ErrorNo() int                       { return c.errNo }
func (c *Conn) ErrorMsg() string                   { return c.errMsg }

func (c *Conn) Quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func (c *Conn) track(err error) error {
	if err == nil {
		c.errNo, c.errMsg = 0, ""
		return nil
	}
	var terr tarantool.Error
	if errors.As(err, &terr) {
		c.errNo, c.errMsg = int(terr.Code), terr.Msg
	} else {
		c.errNo, c.errMsg = -1, err.Error()
	}
	return err
}

func (c *Conn) execute(query string, args []interface{}) (*tarantool.Response, error) {
	if args == nil {
		args = []interface{}{}
	}
	if c.stream != nil {
		return c.stream.Do(tarantool.NewExecuteRequest(query).Args(args)).Get()
	}
	return c.conn.Execute(query, args)
}

func (c *Conn) Query(_ context.Context, query string, args ...interface{}) (*driver.ResultSet, error) {
	resp, err := c.execute(query, args)
	if err != nil {
		return nil, c.track(err)
	}
	return toResultSet(resp, c.mode), c.track(nil)
}

func (c *Conn) Exec(_ context.Context, query string, args ...interface{}) (driver.Result, error) {
	resp, err := c.execute(query, args)
	if err != nil {
		return driver.Result{}, c.track(err)
	}
	res := driver.Result{AffectedRows: int64(resp.SQLInfo.AffectedCount)}
	if ids := resp.SQLInfo.InfoAutoincrementIds; len(ids) > 0 {
		res.LastInsertID = int64(ids[len(ids)-1])
	}
	c.affected, c.lastID = res.AffectedRows, res.LastInsertID
	return res, c.track(nil)
}

func toResultSet(resp *tarantool.Response, mode driver.FetchMode) *driver.ResultSet {
	columns := make([]string, len(resp.MetaData))
	for i, md := range resp.MetaData {
		columns[i] = md.FieldName
	}
	values := make([][]interface{}, 0, len(resp.Data))
	for _, tuple := range resp.Data {
		row, ok := tuple.([]interface{})
		if !ok {
			continue
		}
		for i, v := range row {
			row[i] = nativeValue(v)
		}
		values = append(values, row)
	}
	return driver.NewResultSet(columns, values, mode)
}

// nativeValue unwraps the Tarantool extension types.
func nativeValue(v interface{}) interface{} {
	switch v := v.(type) {
	case decimal.Decimal:
		return v.Decimal
	case *decimal.Decimal:
		return v.Decimal
	case datetime.Datetime:
		return v.ToTime()
	case *datetime.Datetime:
		return v.ToTime()
	case *uuid.UUID:
		return *v
	}
	return v
}

// Prepare returns a statement re-sent as plain SQL on every call.
func (c *Conn) Prepare(_ context.Context, query string) (driver.Stmt, error) {
	return &Stmt{conn: c, query: query}, nil
}

func (c *Conn) Begin(context.Context) error {
	if c.stream != nil {
		return driver.ErrTxInProgress
	}
	stream, err := c.conn.NewStream()
	if err != nil {
		return c.track(err)
	}
	if _, err := stream.Do(tarantool.NewBeginRequest()).Get(); err != nil {
		return c.track(err)
	}
	c.stream = stream
	return c.track(nil)
}

func (c *Conn) Commit(context.Context) error {
	if c.stream == nil {
		return driver.ErrNoTransaction
	}
	_, err := c.stream.Do(tarantool.NewCommitRequest()).Get()
	c.stream = nil
	return c.track(err)
}

func (c *Conn) Rollback(context.Context) error {
	if c.stream == nil {
		return driver.ErrNoTransaction
	}
	_, err := c.stream.Do(tarantool.NewRollbackRequest()).Get()
	c.stream = nil
	return c.track(err)
}

func (c *Conn) Close() error {
	c.stream = nil
	return c.conn.Close()
}

type Stmt struct {
	conn  *Conn
	query string
}

func (s *Stmt) Query(ctx context.Context, args ...interface{}) (*driver.ResultSet, error) {
	return s.conn.Query(ctx, s.query, args...)
}

func (s *Stmt) Exec(ctx context.Context, args ...interface{}) (driver.Result, error) {
	return s.conn.Exec(ctx, s.query, args...)
}

func (s *Stmt) Close() error { return nil }
