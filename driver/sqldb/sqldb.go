// Package sqldb implements the proxy driver contract on top of database/sql.
//
// Each proxy connection owns a dedicated *sql.Conn so that session state
// (init commands, transactions, LAST_INSERT_ID) stays on one server session.
// Importing the package registers the MySQL flavour as "mysql" and "mysqli".
package sqldb

import (
	"context"
	"database/sql"
	sqldriver "database/sql/driver"
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/hashicorp/go-multierror"

	"github.com/ice-blockchain/go-dbproxy/config"
	"github.com/ice-blockchain/go-dbproxy/driver"
)

func init() {
	d := NewMySQL()
	driver.Register("mysql", d)
	driver.Register("mysqli", d)
}

// Dialect holds what differs between database/sql backends.
type Dialect struct {
	// Connector builds a database/sql connector for node.
	Connector func(node config.Node) (sqldriver.Connector, error)
	// Quote escapes and quotes a string literal.
	Quote func(s string) string
	// ErrorNumber extracts the server error number and message from err.
	ErrorNumber func(err error) (int, string)
}

type Driver struct {
	dialect Dialect
}

var _ driver.Driver = (*Driver)(nil)

func New(dialect Dialect) *Driver {
	if dialect.Quote == nil {
		dialect.Quote = QuoteStandard
	}
	if dialect.ErrorNumber == nil {
		dialect.ErrorNumber = func(err error) (int, string) { return -1, err.Error() }
	}
	return &Driver{dialect: dialect}
}

// NewMySQL returns a driver for MySQL and MariaDB servers.
func NewMySQL() *Driver {
	return New(Dialect{
		Connector:   mysqlConnector,
		Quote:       QuoteMySQL,
		ErrorNumber: mysqlErrorNumber,
	})
}

func (d *Driver) Open(ctx context.Context, node config.Node) (driver.Conn, error) {
	connector, err := d.dialect.Connector(node)
	if err != nil {
		return nil, err
	}

	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(1)

	conn, err := db.Conn(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		db.Close()
		return nil, err
	}

	return &Conn{
		db:      db,
		conn:    conn,
		node:    node,
		dialect: d.dialect,
	}, nil
}

func mysqlConnector(node config.Node) (sqldriver.Connector, error) {
	c := mysql.NewConfig()
	c.Net = "tcp"
	if strings.HasPrefix(node.Host, "/") {
		c.Net = "unix"
	}
	c.Addr = node.Host
	c.User = node.User
	c.Passwd = node.Password
	c.DBName = node.Name
	c.ParseTime = true
	return mysql.NewConnector(c)
}

func mysqlErrorNumber(err error) (int, string) {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return int(me.Number), me.Message
	}
	return -1, err.Error()
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// Conn is one MySQL session.
type Conn struct {
	db      *sql.DB
	conn    *sql.Conn
	tx      *sql.Tx
	node    config.Node
	dialect Dialect
	mode    driver.FetchMode

	affected int64
	lastID   int64
	errNo    int
	errMsg   string
}

var _ driver.Conn = (*Conn)(nil)

func (c *Conn) querier() querier {
	if c.tx != nil {
		return c.tx
	}
	return c.conn
}

// track remembers the outcome of the last operation for ErrorNo/ErrorMsg.
func (c *Conn) track(err error) error {
	if err == nil {
		c.errNo, c.errMsg = 0, ""
		return nil
	}
	c.errNo, c.errMsg = c.dialect.ErrorNumber(err)
	return err
}

func (c *Conn) Host() string                       { return c.node.Host }
func (c *Conn) Database() string                   { return c.node.Name }
func (c *Conn) User() string                       { return c.node.User }
func (c *Conn) FetchMode() driver.FetchMode        { return c.mode }
func (c *Conn) SetFetchMode(mode driver.FetchMode) { c.mode = mode }
func (c *Conn) AffectedRows() int64                { return c.affected }
func (c *Conn) LastInsertID() int64                { return c.lastID }
func (c *Conn) ErrorNo() int                       { return c.errNo }
func (c *Conn) ErrorMsg() string                   { return c.errMsg }
func (c *Conn) Quote(s string) string              { return c.dialect.Quote(s) }

func (c *Conn) Query(ctx context.Context, query string, args ...interface{}) (*driver.ResultSet, error) {
	rows, err := c.querier().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, c.track(err)
	}
	rs, err := scan(rows, c.mode)
	return rs, c.track(err)
}

func (c *Conn) Exec(ctx context.Context, query string, args ...interface{}) (driver.Result, error) {
	res, err := c.querier().ExecContext(ctx, query, args...)
	if err != nil {
		return driver.Result{}, c.track(err)
	}
	return c.result(res), c.track(nil)
}

func (c *Conn) result(res sql.Result) driver.Result {
	affected, _ := res.RowsAffected()
	lastID, _ := res.LastInsertId()
	c.affected, c.lastID = affected, lastID
	return driver.Result{AffectedRows: affected, LastInsertID: lastID}
}

func (c *Conn) Prepare(ctx context.Context, query string) (driver.Stmt, error) {
	stmt, err := c.querier().PrepareContext(ctx, query)
	if err != nil {
		return nil, c.track(err)
	}
	return &Stmt{conn: c, stmt: stmt}, c.track(nil)
}

func (c *Conn) Begin(ctx context.Context) error {
	if c.tx != nil {
		return driver.ErrTxInProgress
	}
	tx, err := c.conn.BeginTx(ctx, nil)
	if err != nil {
		return c.track(err)
	}
	c.tx = tx
	return c.track(nil)
}

func (c *Conn) Commit(context.Context) error {
	if c.tx == nil {
		return driver.ErrNoTransaction
	}
	err := c.tx.Commit()
	c.tx = nil
	return c.track(err)
}

func (c *Conn) Rollback(context.Context) error {
	if c.tx == nil {
		return driver.ErrNoTransaction
	}
	err := c.tx.Rollback()
	c.tx = nil
	return c.track(err)
}

func (c *Conn) Close() error {
	var result *multierror.Error
	if c.tx != nil {
		if err := c.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			result = multierror.Append(result, err)
		}
		c.tx = nil
	}
	if err := c.conn.Close(); err != nil && !errors.Is(err, sql.ErrConnDone) {
		result = multierror.Append(result, err)
	}
	if err := c.db.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

type Stmt struct {
	conn *Conn
	stmt *sql.Stmt
}

func (s *Stmt) Query(ctx context.Context, args ...interface{}) (*driver.ResultSet, error) {
	rows, err := s.stmt.QueryContext(ctx, args...)
	if err != nil {
		return nil, s.conn.track(err)
	}
	rs, err := scan(rows, s.conn.mode)
	return rs, s.conn.track(err)
}

func (s *Stmt) Exec(ctx context.Context, args ...interface{}) (driver.Result, error) {
	res, err := s.stmt.ExecContext(ctx, args...)
	if err != nil {
		return driver.Result{}, s.conn.track(err)
	}
	return s.conn.result(res), s.conn.track(nil)
}

func (s *Stmt) Close() error {
	return s.stmt.Close()
}
