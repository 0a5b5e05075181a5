// Package pool owns the physical connections of one unit of work.
//
// A Pool holds at most one connection per destination. Connections are
// opened on first use, prepared (init commands, associative fetch mode) and
// kept until explicitly closed. A closed destination is transparently
// reopened by the next Get.
package pool

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/ice-blockchain/go-dbproxy/balancer"
	"github.com/ice-blockchain/go-dbproxy/benchmark"
	"github.com/ice-blockchain/go-dbproxy/config"
	"github.com/ice-blockchain/go-dbproxy/driver"
	"github.com/ice-blockchain/go-dbproxy/logger"
	"github.com/ice-blockchain/go-dbproxy/selector"
)

// ConnectionHandler provides callbacks for components interested in the
// connections of a Pool.
type ConnectionHandler interface {
	// Discovered is called once a new connection is prepared, before it is
	// handed out. Returning an error closes the connection and fails Get.
	Discovered(dest balancer.Destination, conn driver.Conn) error
	// Deactivated is called after a connection has been closed.
	Deactivated(dest balancer.Destination, conn driver.Conn) error
}

type Opts struct {
	// Registry resolves node drivers. Defaults to driver.Default.
	Registry *driver.Registry
	// Selector picks the slave serving reads. Defaults to a weighted
	// selector probing through Registry.
	Selector selector.Selector
	// Timer measures connection setup under benchmark.KeyConnections.
	Timer  benchmark.Timer
	Logger logger.Logger
	// ConnectionHandler provides an ability to handle connection updates.
	ConnectionHandler ConnectionHandler
}

// ConnectionError reports a failure to establish the connection of a
// destination. It is never retried.
type ConnectionError struct {
	Destination balancer.Destination
	Host        string
	Err         error
}

func (e *ConnectionError) Error() string {
	if e.Host == "" {
		return fmt.Sprintf("can't connect to %s: %s", e.Destination, e.Err)
	}
	return fmt.Sprintf("can't connect to %s %s: %s", e.Destination, e.Host, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

type Pool struct {
	source config.Source
	params config.Params
	opts   Opts
	conns  map[balancer.Destination]driver.Conn
}

func New(source config.Source, opts Opts) *Pool {
	if opts.Registry == nil {
		opts.Registry = driver.Default
	}
	if opts.Timer == nil {
		opts.Timer = benchmark.Nop{}
	}
	if opts.Logger == nil {
		opts.Logger = logger.SimpleLogger{}
	}
	if opts.Selector == nil {
		opts.Selector = selector.NewWeighted(selector.Opts{
			Prober: selector.DriverProber{Registry: opts.Registry},
			Logger: opts.Logger,
		})
	}
	return &Pool{
		source: source,
		params: source.Params(),
		opts:   opts,
		conns:  make(map[balancer.Destination]driver.Conn),
	}
}

// SingleServer reports whether no profile is configured, in which case
// every destination maps to balancer.SingleServer.
func (p *Pool) SingleServer() bool {
	return p.params.Profile == ""
}

// Params returns the database parameters the pool was created with.
func (p *Pool) Params() config.Params {
	return p.params
}

func (p *Pool) destination(dest balancer.Destination) balancer.Destination {
	if p.SingleServer() {
		return balancer.SingleServer
	}
	if dest == balancer.SingleServer {
		return balancer.Master
	}
	return dest
}

// Connected reports whether dest currently has a live connection.
func (p *Pool) Connected(dest balancer.Destination) bool {
	_, ok := p.conns[p.destination(dest)]
	return ok
}

// Get returns the connection of dest, opening it if needed, along with the
// destination actually used.
func (p *Pool) Get(ctx context.Context, dest balancer.Destination) (driver.Conn, balancer.Destination, error) {
	dest = p.destination(dest)
	if conn, ok := p.conns[dest]; ok {
		return conn, dest, nil
	}

	node, err := p.resolve(ctx, dest)
	if err != nil {
		p.opts.Logger.Report(logger.NewConnectionFailedEvent(dest.String(), node.Host, err))
		return nil, dest, &ConnectionError{Destination: dest, Host: node.Host, Err: err}
	}

	conn, err := p.open(ctx, dest, node)
	if err != nil {
		p.opts.Logger.Report(logger.NewConnectionFailedEvent(dest.String(), node.Host, err))
		return nil, dest, &ConnectionError{Destination: dest, Host: node.Host, Err: err}
	}
	p.conns[dest] = conn
	return conn, dest, nil
}

func (p *Pool) resolve(ctx context.Context, dest balancer.Destination) (config.Node, error) {
	if dest == balancer.SingleServer {
		return p.params.Node, nil
	}

	profile, err := p.source.Profile(p.params.Profile)
	if err != nil {
		return config.Node{}, err
	}
	if dest == balancer.Master {
		return profile.Master, nil
	}

	id, err := p.opts.Selector.Select(ctx, profile.Slaves)
	if err != nil {
		return config.Node{}, err
	}
	node, ok := profile.Slaves[id]
	if !ok {
		return config.Node{}, fmt.Errorf("selected slave %q is not part of profile %q", id, p.params.Profile)
	}
	return node, nil
}

func (p *Pool) open(ctx context.Context, dest balancer.Destination, node config.Node) (driver.Conn, error) {
	p.opts.Timer.Start(benchmark.KeyConnections)
	conn, err := p.prepare(ctx, dest, node)
	elapsed := p.opts.Timer.Stop(benchmark.KeyConnections)
	if err != nil {
		return nil, err
	}
	p.opts.Logger.Report(logger.NewConnectionOpenedEvent(dest.String(), node.Host, node.Name, elapsed))
	return conn, nil
}

func (p *Pool) prepare(ctx context.Context, dest balancer.Destination, node config.Node) (driver.Conn, error) {
	conn, err := p.opts.Registry.Open(ctx, node)
	if err != nil {
		return nil, err
	}

	for _, cmd := range node.InitCommands {
		if _, err := conn.Exec(ctx, cmd); err != nil {
			conn.Close()
			return nil, fmt.Errorf("init command %q: %w", cmd, err)
		}
	}
	conn.SetFetchMode(driver.FetchAssoc)

	if h := p.opts.ConnectionHandler; h != nil {
		if err := h.Discovered(dest, conn); err != nil {
			conn.Close()
			return nil, err
		}
	}
	return conn, nil
}

// Close closes and evicts the connection of dest. Closing a destination
// without a connection is a no-op.
func (p *Pool) Close(dest balancer.Destination) error {
	dest = p.destination(dest)
	conn, ok := p.conns[dest]
	if !ok {
		return nil
	}
	delete(p.conns, dest)

	err := conn.Close()
	if h := p.opts.ConnectionHandler; h != nil {
		if herr := h.Deactivated(dest, conn); herr != nil && err == nil {
			err = herr
		}
	}
	p.opts.Logger.Report(logger.NewConnectionClosedEvent(dest.String(), conn.Host(), err))
	return err
}

// CloseAll closes every connection of the pool.
func (p *Pool) CloseAll() error {
	var result *multierror.Error
	for _, dest := range []balancer.Destination{balancer.SingleServer, balancer.Master, balancer.Slave} {
		if _, ok := p.conns[dest]; !ok {
			continue
		}
		if err := p.Close(dest); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
