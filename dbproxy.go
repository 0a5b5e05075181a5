// Package dbproxy forwards database operations to the right server of a
// master/slaves deployment.
//
// A Database is the unit of work: it owns the connections it opened, the
// "next query in master" flag and the debug records of the requests it
// served. Create one per inbound request or script run, pass it around with
// NewContext/FromContext and Close it when done.
//
// Every operation goes through Database.Do, which:
//
//   - labels the query with a tag comment (the caller's own or one naming
//     the calling type and function),
//   - routes reads to a slave and everything else to the master,
//   - opens the destination connection on first use,
//   - flattens wrapped parameters and drops parameters the query doesn't
//     bind, with a warning,
//   - logs driver failures to disk and returns or swallows them according
//     to the ErrorPolicy,
//   - records the call for debugging when Opts.Debug is set.
//
// Without a configured profile every operation runs on a single server.
package dbproxy

import (
	"context"
	"reflect"
	"strings"

	"github.com/google/uuid"

	"github.com/ice-blockchain/go-dbproxy/balancer"
	"github.com/ice-blockchain/go-dbproxy/benchmark"
	"github.com/ice-blockchain/go-dbproxy/config"
	"github.com/ice-blockchain/go-dbproxy/debug"
	"github.com/ice-blockchain/go-dbproxy/driver"
	"github.com/ice-blockchain/go-dbproxy/errorlog"
	"github.com/ice-blockchain/go-dbproxy/logger"
	"github.com/ice-blockchain/go-dbproxy/pool"
	"github.com/ice-blockchain/go-dbproxy/selector"
)

// Opts configures a Database. The zero value is usable.
type Opts struct {
	// Debug enables the recording of every request in DebugRegistry.
	Debug bool
	// DebugRegistry defaults to a registry owned by the Database.
	DebugRegistry *debug.Registry
	ErrorPolicy   ErrorPolicy

	// Registry resolves node drivers. Defaults to driver.Default.
	Registry *driver.Registry
	// Selector picks the slave serving reads.
	Selector selector.Selector
	// Timer measures connections and queries.
	Timer benchmark.Timer
	// Logger defaults to logger.SimpleLogger.
	Logger logger.Logger
	// ConnectionHandler is notified of opened and closed connections.
	ConnectionHandler pool.ConnectionHandler

	// ErrorLog defaults to a writer at the error_log_path parameter, or
	// logs/errors_database.log under the working directory.
	ErrorLog *errorlog.Writer
	// Request describes the inbound request for the error log.
	Request errorlog.Request
}

type Database struct {
	id       uuid.UUID
	opts     Opts
	pool     *pool.Pool
	router   *balancer.Router
	debug    *debug.Registry
	errorLog *errorlog.Writer
	tx       txState
}

var pkgPath = reflect.TypeOf(Database{}).PkgPath()

// New returns a Database reading its deployment from source. Nothing is
// connected until the first request.
func New(source config.Source, opts Opts) *Database {
	if opts.Timer == nil {
		opts.Timer = benchmark.Nop{}
	}
	if opts.Logger == nil {
		opts.Logger = logger.SimpleLogger{}
	}
	if opts.DebugRegistry == nil {
		opts.DebugRegistry = debug.NewRegistry()
	}

	p := pool.New(source, pool.Opts{
		Registry:          opts.Registry,
		Selector:          opts.Selector,
		Timer:             opts.Timer,
		Logger:            opts.Logger,
		ConnectionHandler: opts.ConnectionHandler,
	})
	if opts.ErrorLog == nil {
		opts.ErrorLog = errorlog.New(errorlog.Opts{
			Path:   p.Params().ErrorLogPath,
			Logger: opts.Logger,
		})
	}

	return &Database{
		id:       uuid.New(),
		opts:     opts,
		pool:     p,
		router:   balancer.NewRouter(p.SingleServer()),
		debug:    opts.DebugRegistry,
		errorLog: opts.ErrorLog,
	}
}

// ID identifies the unit of work in logs.
func (db *Database) ID() string {
	return db.id.String()
}

// Debug returns the registry requests are recorded in.
func (db *Database) Debug() *debug.Registry {
	return db.debug
}

// SingleServer reports whether no profile is configured.
func (db *Database) SingleServer() bool {
	return db.pool.SingleServer()
}

// Do runs req on the destination it routes to.
//
// A *ConnectionError is returned when the destination can't be connected
// to. A driver failure returns a *QueryError under PropagateOnFailure, and
// a Response with Failed set and no error under SwallowAndReturnSentinel.
func (db *Database) Do(ctx context.Context, req Request) (*Response, error) {
	defer db.router.Reset()

	tag := db.resolveTag(req)
	query := req.SQL()
	if query != "" {
		query += "\n/* " + tag + " */"
	}

	dest, isRead := db.router.Route(query, req.alwaysMaster() || db.tx.active())
	params := db.normalizeParams(query, req.Params())

	db.opts.Timer.Start(benchmark.KeyQueries)

	var conn driver.Conn
	if req.connects(db) || db.pool.Connected(dest) {
		var err error
		conn, dest, err = db.pool.Get(ctx, dest)
		if err != nil {
			db.opts.Timer.Stop(benchmark.KeyQueries)
			return nil, err
		}
	}

	// The node fields are read before exec, which may close conn.
	var host, database, user string
	if conn != nil {
		host, database, user = conn.Host(), conn.Database(), conn.User()
	}
	_, closing := req.(*CloseRequest)

	resp, err := req.exec(ctx, db, conn, query, params)
	elapsed := db.opts.Timer.Stop(benchmark.KeyQueries)
	if err != nil {
		resp = &Response{Failed: true}
		db.errorLog.Write(db.opts.Request, err.Error())
		db.opts.Logger.Report(logger.NewQueryFailedEvent(req.Method(), query, dest.String(), err))
		db.tx.fail()
	}
	resp.Method, resp.Tag, resp.Destination = req.Method(), tag, dest

	if db.opts.Debug {
		inv := debug.Invocation{
			Method:      req.Method(),
			Query:       query,
			Params:      params,
			Tag:         tag,
			Destination: dest.String(),
			Read:        isRead,
			Elapsed:     elapsed,
			Result:      resp.debugResult,
			Error:       err,
			Controller:  debug.CallerChain(callers(), debug.MaxCallerDepth),
		}
		inv.Host, inv.Database, inv.User = host, database, user
		if conn != nil && !isRead && !closing {
			inv.AffectedRows = conn.AffectedRows()
		}
		db.debug.Record(inv)
	}

	if err != nil && db.opts.ErrorPolicy == PropagateOnFailure {
		return resp, &QueryError{Method: req.Method(), Query: query, Destination: dest, Err: err}
	}
	return resp, nil
}

// resolveTag returns the tag of req, or one naming the first caller outside
// this package. Question marks are removed so the tag can't add bindings.
func (db *Database) resolveTag(req Request) string {
	tag, ok := req.tag()
	if !ok {
		tag = "Query from undefined (undefined)"
		if f, found := debug.FirstOutside(debug.Stack(0), pkgPath); found {
			tag = "Query from " + f.Owner() + " (" + f.Function + ")"
		}
	}
	return strings.ReplaceAll(tag, "?", "")
}

// NextQueryInMaster forces the next request to the master.
func (db *Database) NextQueryInMaster() {
	db.router.NextQueryInMaster()
}

// CallerClass returns the chain of types that led to this call.
func (db *Database) CallerClass() string {
	return debug.CallerChain(callers(), debug.MaxCallerDepth)
}

// callers returns the stack from the first frame outside this package.
func callers() []debug.Frame {
	frames := debug.Stack(0)
	for i, f := range frames {
		if f.Package != pkgPath {
			return frames[i:]
		}
	}
	return nil
}

// HasFailedTrans reports whether the open transaction will be rolled back.
func (db *Database) HasFailedTrans() bool {
	return db.tx.active() && db.tx.failed
}

// Accessor returns the connection of the last destination used, connecting
// it if needed. No routing happens.
func (db *Database) Accessor(ctx context.Context) (driver.Accessor, error) {
	conn, _, err := db.pool.Get(ctx, db.router.Current())
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Host returns the host of the current connection.
func (db *Database) Host(ctx context.Context) (string, error) {
	a, err := db.Accessor(ctx)
	if err != nil {
		return "", err
	}
	return a.Host(), nil
}

// DatabaseName returns the database name of the current connection.
func (db *Database) DatabaseName(ctx context.Context) (string, error) {
	a, err := db.Accessor(ctx)
	if err != nil {
		return "", err
	}
	return a.Database(), nil
}

// User returns the user of the current connection.
func (db *Database) User(ctx context.Context) (string, error) {
	a, err := db.Accessor(ctx)
	if err != nil {
		return "", err
	}
	return a.User(), nil
}

func (db *Database) FetchMode(ctx context.Context) (driver.FetchMode, error) {
	a, err := db.Accessor(ctx)
	if err != nil {
		return driver.FetchDefault, err
	}
	return a.FetchMode(), nil
}

func (db *Database) SetFetchMode(ctx context.Context, mode driver.FetchMode) error {
	a, err := db.Accessor(ctx)
	if err != nil {
		return err
	}
	a.SetFetchMode(mode)
	return nil
}

// EscapeSQLString quotes s as a string literal for the current connection.
func (db *Database) EscapeSQLString(ctx context.Context, s string) (string, error) {
	conn, _, err := db.pool.Get(ctx, db.router.Current())
	if err != nil {
		return "", err
	}
	return conn.Quote(s), nil
}

// Close ends the unit of work, closing every connection.
func (db *Database) Close() error {
	db.tx.reset()
	return db.pool.CloseAll()
}

type ctxKey struct{}

// NewContext returns a copy of ctx carrying db.
func NewContext(ctx context.Context, db *Database) context.Context {
	return context.WithValue(ctx, ctxKey{}, db)
}

// FromContext returns the Database carried by ctx.
func FromContext(ctx context.Context) (*Database, error) {
	db, ok := ctx.Value(ctxKey{}).(*Database)
	if !ok || db == nil {
		return nil, ErrNoDatabase
	}
	return db, nil
}
