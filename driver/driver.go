// Package driver defines the contract between the proxy and a concrete
// database client library.
//
// Backends register themselves by name, the way database/sql drivers do,
// and are selected by the db_driver value of a node descriptor:
//
//	import _ "github.com/ice-blockchain/go-dbproxy/driver/sqldb" // mysql, mysqli
//	import _ "github.com/ice-blockchain/go-dbproxy/driver/tnt"   // tarantool
package driver

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ice-blockchain/go-dbproxy/config"
)

var (
	ErrUnknownDriver = errors.New("unknown database driver")
	ErrNoTransaction = errors.New("no transaction in progress")
	ErrTxInProgress  = errors.New("transaction already in progress")
	ErrUnsupported   = errors.New("operation not supported by driver")
)

// Driver opens physical connections.
type Driver interface {
	Open(ctx context.Context, node config.Node) (Conn, error)
}

// Accessor exposes the attributes of an open connection.
type Accessor interface {
	Host() string
	Database() string
	User() string
	FetchMode() FetchMode
	SetFetchMode(mode FetchMode)
}

// Conn is one physical connection (one session) to a database server.
type Conn interface {
	Accessor

	// Query runs a statement returning rows.
	Query(ctx context.Context, query string, args ...interface{}) (*ResultSet, error)
	// Exec runs a statement that doesn't return rows.
	Exec(ctx context.Context, query string, args ...interface{}) (Result, error)
	Prepare(ctx context.Context, query string) (Stmt, error)

	Begin(ctx context.Context) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error

	// Quote returns s escaped and quoted as a string literal.
	Quote(s string) string

	// AffectedRows and LastInsertID describe the last Exec on this session.
	AffectedRows() int64
	LastInsertID() int64
	// ErrorNo and ErrorMsg describe the last failed operation, zero values
	// if the last operation succeeded.
	ErrorNo() int
	ErrorMsg() string

	Close() error
}

// Stmt is a prepared statement bound to the connection that prepared it.
type Stmt interface {
	Query(ctx context.Context, args ...interface{}) (*ResultSet, error)
	Exec(ctx context.Context, args ...interface{}) (Result, error)
	Close() error
}

// Result summarizes an Exec.
type Result struct {
	AffectedRows int64
	LastInsertID int64
}

// Registry maps driver names to drivers.
type Registry struct {
	mu      sync.RWMutex
	drivers map[string]Driver
}

func NewRegistry() *Registry {
	return &Registry{drivers: make(map[string]Driver)}
}

// Register makes a driver available by name. It panics if called twice
// with the same name or with a nil driver.
func (r *Registry) Register(name string, d Driver) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if d == nil {
		panic("dbproxy: Register driver is nil")
	}
	if _, dup := r.drivers[name]; dup {
		panic("dbproxy: Register called twice for driver " + name)
	}
	r.drivers[name] = d
}

func (r *Registry) Lookup(name string) (Driver, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.drivers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, name)
	}
	return d, nil
}

// Open opens a connection to node with the driver named by node.Driver.
func (r *Registry) Open(ctx context.Context, node config.Node) (Conn, error) {
	d, err := r.Lookup(node.Driver)
	if err != nil {
		return nil, err
	}
	return d.Open(ctx, node)
}

func (r *Registry) Drivers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.drivers))
	for name := range r.drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Default is the registry used when none is configured.
var Default = NewRegistry()

func Register(name string, d Driver) {
	Default.Register(name, d)
}
