package pool_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ice-blockchain/go-dbproxy/balancer"
	"github.com/ice-blockchain/go-dbproxy/benchmark"
	"github.com/ice-blockchain/go-dbproxy/config"
	"github.com/ice-blockchain/go-dbproxy/driver"
	"github.com/ice-blockchain/go-dbproxy/pool"
	"github.com/ice-blockchain/go-dbproxy/selector"
	"github.com/ice-blockchain/go-dbproxy/test_helpers"
)

func node(host string) config.Node {
	return config.Node{Driver: test_helpers.MockDriverName, Host: host, User: "app", Name: "app"}
}

func profileSource() *config.Static {
	return &config.Static{
		Database: config.Params{Profile: "main"},
		Profiles: map[string]config.Profile{
			"main": {
				Master: node("master"),
				Slaves: map[string]config.Node{"replica-1": node("replica")},
			},
		},
	}
}

func singleSource() *config.Static {
	return &config.Static{Database: config.Params{Node: node("single")}}
}

// newPool builds a pool whose default selector starts from an empty health
// cache.
func newPool(t *testing.T, source config.Source, opts pool.Opts) *pool.Pool {
	prev := selector.DefaultCache
	selector.DefaultCache = selector.NewMemoryCache()
	t.Cleanup(func() { selector.DefaultCache = prev })
	return pool.New(source, opts)
}

func TestPool_GetIsLazyAndCached(t *testing.T) {
	d := test_helpers.NewMockDriver()
	p := newPool(t, profileSource(), pool.Opts{Registry: d.Registry()})
	ctx := context.Background()

	assert.False(t, p.SingleServer())
	assert.False(t, p.Connected(balancer.Master))
	assert.Empty(t, d.Opened())

	conn, dest, err := p.Get(ctx, balancer.Master)
	require.NoError(t, err)
	assert.Equal(t, balancer.Master, dest)
	assert.Equal(t, "master", conn.Host())
	assert.Equal(t, driver.FetchAssoc, conn.FetchMode())

	again, _, err := p.Get(ctx, balancer.Master)
	require.NoError(t, err)
	assert.Same(t, conn, again)
	assert.Len(t, d.Opened(), 1)

	slave, dest, err := p.Get(ctx, balancer.Slave)
	require.NoError(t, err)
	assert.Equal(t, balancer.Slave, dest)
	assert.Equal(t, "replica", slave.Host())
	// One probe connection plus the slave connection itself.
	assert.Len(t, d.Opened(), 3)
}

func TestPool_SingleServer(t *testing.T) {
	d := test_helpers.NewMockDriver()
	p := newPool(t, singleSource(), pool.Opts{Registry: d.Registry()})

	require.True(t, p.SingleServer())
	for _, dest := range []balancer.Destination{balancer.Master, balancer.Slave, balancer.SingleServer} {
		conn, got, err := p.Get(context.Background(), dest)
		require.NoError(t, err)
		assert.Equal(t, balancer.SingleServer, got)
		assert.Equal(t, "single", conn.Host())
	}
	assert.Len(t, d.Opened(), 1)
}

func TestPool_InitCommands(t *testing.T) {
	d := test_helpers.NewMockDriver()
	src := singleSource()
	src.Database.InitCommands = []string{"SET NAMES utf8mb4", "SET time_zone = '+00:00'"}
	p := newPool(t, src, pool.Opts{Registry: d.Registry()})

	_, _, err := p.Get(context.Background(), balancer.SingleServer)
	require.NoError(t, err)

	calls := d.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "SET NAMES utf8mb4", calls[0].Query)
	assert.Equal(t, "SET time_zone = '+00:00'", calls[1].Query)
}

func TestPool_InitCommandFailureAbortsCreation(t *testing.T) {
	d := test_helpers.NewMockDriver()
	d.Handler = test_helpers.QueryContains("bad", nil, errors.New("unknown variable"))
	src := singleSource()
	src.Database.InitCommands = []string{"SET ok = 1", "SET bad = 1", "SET never = 1"}
	p := newPool(t, src, pool.Opts{Registry: d.Registry()})

	_, _, err := p.Get(context.Background(), balancer.SingleServer)
	var connErr *pool.ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, balancer.SingleServer, connErr.Destination)
	assert.Equal(t, "single", connErr.Host)
	assert.Contains(t, err.Error(), "unknown variable")

	assert.False(t, p.Connected(balancer.SingleServer))
	require.Len(t, d.Opened(), 1)
	assert.True(t, d.Opened()[0].Closed())
	assert.Len(t, d.Calls(), 3) // two init commands and the close
}

func TestPool_ConnectionError(t *testing.T) {
	d := test_helpers.NewMockDriver()
	refused := errors.New("connection refused")
	d.Fail("master", refused)
	log := &test_helpers.RecordingLogger{}
	p := newPool(t, profileSource(), pool.Opts{Registry: d.Registry(), Logger: log})

	_, _, err := p.Get(context.Background(), balancer.Master)
	require.ErrorIs(t, err, refused)
	assert.EqualError(t, err, "can't connect to master master: connection refused")
	assert.Len(t, log.Named("connection_failed"), 1)

	// Not retried internally, but the next Get tries again.
	d.Fail("master", nil)
	_, _, err = p.Get(context.Background(), balancer.Master)
	assert.NoError(t, err)
}

func TestPool_NoHealthySlave(t *testing.T) {
	d := test_helpers.NewMockDriver()
	d.Fail("replica", errors.New("down"))
	p := newPool(t, profileSource(), pool.Opts{Registry: d.Registry()})

	_, _, err := p.Get(context.Background(), balancer.Slave)
	assert.ErrorIs(t, err, selector.ErrNoHealthyNode)
	var connErr *pool.ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, balancer.Slave, connErr.Destination)
}

func TestPool_UnknownProfile(t *testing.T) {
	src := profileSource()
	src.Database.Profile = "other"
	p := newPool(t, src, pool.Opts{Registry: test_helpers.NewMockDriver().Registry()})

	_, _, err := p.Get(context.Background(), balancer.Master)
	assert.ErrorIs(t, err, config.ErrProfileNotFound)
}

func TestPool_CloseReopens(t *testing.T) {
	d := test_helpers.NewMockDriver()
	p := newPool(t, profileSource(), pool.Opts{Registry: d.Registry()})
	ctx := context.Background()

	first, _, err := p.Get(ctx, balancer.Master)
	require.NoError(t, err)
	require.NoError(t, p.Close(balancer.Master))
	assert.False(t, p.Connected(balancer.Master))
	assert.True(t, first.(*test_helpers.MockConn).Closed())

	second, _, err := p.Get(ctx, balancer.Master)
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.Equal(t, first.Host(), second.Host())

	assert.NoError(t, p.Close(balancer.Slave))
}

func TestPool_CloseAll(t *testing.T) {
	d := test_helpers.NewMockDriver()
	p := newPool(t, profileSource(), pool.Opts{Registry: d.Registry()})
	ctx := context.Background()

	master, _, err := p.Get(ctx, balancer.Master)
	require.NoError(t, err)
	slave, _, err := p.Get(ctx, balancer.Slave)
	require.NoError(t, err)

	// Closing twice makes the mock fail, which CloseAll aggregates.
	require.NoError(t, slave.Close())
	err = p.CloseAll()
	require.Error(t, err)
	assert.ErrorIs(t, err, test_helpers.ErrConnClosed)

	assert.True(t, master.(*test_helpers.MockConn).Closed())
	assert.False(t, p.Connected(balancer.Master))
	assert.False(t, p.Connected(balancer.Slave))
	assert.NoError(t, p.CloseAll())
}

type handler struct {
	discovered  []balancer.Destination
	deactivated []balancer.Destination
	reject      error
}

func (h *handler) Discovered(dest balancer.Destination, _ driver.Conn) error {
	h.discovered = append(h.discovered, dest)
	return h.reject
}

func (h *handler) Deactivated(dest balancer.Destination, _ driver.Conn) error {
	h.deactivated = append(h.deactivated, dest)
	return nil
}

func TestPool_ConnectionHandler(t *testing.T) {
	d := test_helpers.NewMockDriver()
	h := &handler{}
	p := newPool(t, profileSource(), pool.Opts{Registry: d.Registry(), ConnectionHandler: h})
	ctx := context.Background()

	_, _, err := p.Get(ctx, balancer.Master)
	require.NoError(t, err)
	require.NoError(t, p.Close(balancer.Master))
	assert.Equal(t, []balancer.Destination{balancer.Master}, h.discovered)
	assert.Equal(t, []balancer.Destination{balancer.Master}, h.deactivated)

	h.reject = errors.New("not today")
	_, _, err = p.Get(ctx, balancer.Master)
	assert.ErrorIs(t, err, h.reject)
	assert.False(t, p.Connected(balancer.Master))
}

func TestPool_TimesConnections(t *testing.T) {
	d := test_helpers.NewMockDriver()
	b := benchmark.New()
	log := &test_helpers.RecordingLogger{}
	p := newPool(t, singleSource(), pool.Opts{Registry: d.Registry(), Timer: b, Logger: log})

	_, _, err := p.Get(context.Background(), balancer.SingleServer)
	require.NoError(t, err)
	assert.Equal(t, 1, b.Count(benchmark.KeyConnections))
	assert.Len(t, log.Named("connection_opened"), 1)
}
