package dbproxy_test

import (
	"bytes"
	"context"
	"errors"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dbproxy "github.com/ice-blockchain/go-dbproxy"
	"github.com/ice-blockchain/go-dbproxy/balancer"
	"github.com/ice-blockchain/go-dbproxy/benchmark"
	"github.com/ice-blockchain/go-dbproxy/config"
	"github.com/ice-blockchain/go-dbproxy/driver"
	"github.com/ice-blockchain/go-dbproxy/errorlog"
	"github.com/ice-blockchain/go-dbproxy/selector"
	"github.com/ice-blockchain/go-dbproxy/test_helpers"
)

var errSyntax = &test_helpers.MockError{No: 1064, Msg: "syntax error"}

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

type env struct {
	drv    *test_helpers.MockDriver
	log    *test_helpers.RecordingLogger
	db     *dbproxy.Database
	errLog string
}

// newEnv returns a Database over a mock driver. Queries containing BROKEN
// fail with errSyntax.
func newEnv(t *testing.T, source config.Source, opts dbproxy.Opts) *env {
	t.Helper()

	e := &env{
		drv:    test_helpers.NewMockDriver(),
		log:    &test_helpers.RecordingLogger{},
		errLog: filepath.Join(t.TempDir(), "logs", "errors_database.log"),
	}
	e.drv.Handler = test_helpers.QueryContains("BROKEN", nil, errSyntax)

	opts.Registry = e.drv.Registry()
	opts.Selector = selector.NewRoundRobin(selector.Opts{
		Prober: selector.ProberFunc(func(context.Context, config.Node) error { return nil }),
		Cache:  selector.NewMemoryCache(),
	})
	opts.Logger = e.log
	opts.ErrorLog = errorlog.New(errorlog.Opts{Path: e.errLog, Logger: e.log})
	e.db = dbproxy.New(source, opts)
	t.Cleanup(func() { e.db.Close() })
	return e
}

func (e *env) methods() []string {
	var ret []string
	for _, c := range e.drv.Calls() {
		ret = append(ret, c.Method+"@"+c.Host)
	}
	return ret
}

func TestDatabase_RoutesReadsToSlave(t *testing.T) {
	e := newEnv(t, profileSource(), dbproxy.Opts{})
	ctx := context.Background()

	_, err := e.db.GetAll(ctx, "SELECT * FROM users")
	require.NoError(t, err)
	_, err = e.db.GetOne(ctx, "  (select count(*) from users)")
	require.NoError(t, err)
	_, err = e.db.GetRow(ctx, "SHOW TABLES")
	require.NoError(t, err)
	_, err = e.db.Execute(ctx, "UPDATE users SET name = ?", "x")
	require.NoError(t, err)
	_, err = e.db.GetAll(ctx, "INSERT INTO log SELECT * FROM users")
	require.NoError(t, err)

	assert.Equal(t, []string{"replica", "replica", "replica", "master", "master"}, e.drv.Hosts())
	assert.Len(t, e.drv.Opened(), 2)
	assert.False(t, e.db.SingleServer())
}

func TestDatabase_NextQueryInMasterIsOneShot(t *testing.T) {
	e := newEnv(t, profileSource(), dbproxy.Opts{})
	ctx := context.Background()

	e.db.NextQueryInMaster()
	resp, err := e.db.Do(ctx, dbproxy.NewQueryRequest("SELECT 1"))
	require.NoError(t, err)
	assert.Equal(t, balancer.Master, resp.Destination)

	resp, err = e.db.Do(ctx, dbproxy.NewQueryRequest("SELECT 1"))
	require.NoError(t, err)
	assert.Equal(t, balancer.Slave, resp.Destination)

	assert.Equal(t, []string{"master", "replica"}, e.drv.Hosts())
}

func TestDatabase_StickyFlagIsResetOnConnectionError(t *testing.T) {
	e := newEnv(t, profileSource(), dbproxy.Opts{})
	ctx := context.Background()
	e.drv.Fail("master", errors.New("refused"))

	e.db.NextQueryInMaster()
	_, err := e.db.GetAll(ctx, "SELECT 1")
	require.Error(t, err)

	e.drv.Fail("master", nil)
	resp, err := e.db.Do(ctx, dbproxy.NewQueryRequest("SELECT 1"))
	require.NoError(t, err)
	assert.Equal(t, balancer.Slave, resp.Destination)
}

func TestDatabase_MetaRequestsOnMaster(t *testing.T) {
	e := newEnv(t, profileSource(), dbproxy.Opts{})
	ctx := context.Background()
	e.drv.Handler = test_helpers.QueryContains("INSERT", test_helpers.NewMockResult(3, 42), nil)

	_, err := e.db.Execute(ctx, "INSERT INTO users (name) VALUES (?), (?), (?)", "a", "b", "c")
	require.NoError(t, err)
	_, err = e.db.GetAll(ctx, "SELECT * FROM users")
	require.NoError(t, err)

	affected, err := e.db.AffectedRows(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, affected)

	id, err := e.db.InsertID(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 42, id)

	for _, kind := range []dbproxy.MetaKind{dbproxy.MetaAffectedRows, dbproxy.MetaInsertID} {
		resp, err := e.db.Do(ctx, dbproxy.NewMetaRequest(kind))
		require.NoError(t, err)
		assert.Equal(t, balancer.Master, resp.Destination)
	}
}

func TestDatabase_ErrorNoAndErrorMsg(t *testing.T) {
	e := newEnv(t, profileSource(), dbproxy.Opts{ErrorPolicy: dbproxy.SwallowAndReturnSentinel})
	ctx := context.Background()

	_, err := e.db.Execute(ctx, "UPDATE BROKEN")
	require.NoError(t, err)

	no, err := e.db.ErrorNo(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1064, no)

	msg, err := e.db.ErrorMsg(ctx)
	require.NoError(t, err)
	assert.Equal(t, "syntax error", msg)
}

func TestDatabase_ParamsAreFlattened(t *testing.T) {
	e := newEnv(t, profileSource(), dbproxy.Opts{})
	ctx := context.Background()

	_, err := e.db.GetAll(ctx, "SELECT * FROM t WHERE id IN (?, ?, ?)", []interface{}{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, []interface{}{1, 2, 3}, e.drv.LastCall().Args)

	_, err = e.db.GetAll(ctx, "SELECT * FROM t WHERE id IN (?, ?, ?)", []int{4, 5, 6})
	require.NoError(t, err)
	assert.Equal(t, []interface{}{4, 5, 6}, e.drv.LastCall().Args)

	_, err = e.db.Execute(ctx, "UPDATE t SET data = ?", []byte("raw"))
	require.NoError(t, err)
	assert.Equal(t, []interface{}{[]byte("raw")}, e.drv.LastCall().Args)

	_, err = e.db.GetAll(ctx, "SELECT * FROM t")
	require.NoError(t, err)
	assert.Nil(t, e.drv.LastCall().Args)

	assert.Empty(t, e.log.Named("param_count_deprecated"))
}

func TestDatabase_ExtraParamsAreDropped(t *testing.T) {
	e := newEnv(t, profileSource(), dbproxy.Opts{})
	ctx := context.Background()

	_, err := e.db.GetAll(ctx, "SELECT * FROM t WHERE a = ? AND b = ?", 1, 2, 3, 4)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{1, 2}, e.drv.LastCall().Args)
	assert.Len(t, e.log.Named("param_count_deprecated"), 1)

	_, err = e.db.GetAll(ctx, "SELECT * FROM t", 1)
	require.NoError(t, err)
	assert.Nil(t, e.drv.LastCall().Args)
	assert.Len(t, e.log.Named("param_count_deprecated"), 2)
}

func TestDatabase_Tag(t *testing.T) {
	e := newEnv(t, profileSource(), dbproxy.Opts{})
	ctx := context.Background()

	resp, err := e.db.Do(ctx, dbproxy.NewQueryRequest("SELECT 1").Tag("users?list"))
	require.NoError(t, err)
	assert.Equal(t, "userslist", resp.Tag)
	assert.Equal(t, "SELECT 1\n/* userslist */", e.drv.LastCall().Query)
}

type userRepo struct {
	db *dbproxy.Database
}

func (r *userRepo) Load(ctx context.Context) (*dbproxy.Response, error) {
	return r.db.Do(ctx, dbproxy.NewRowRequest("SELECT * FROM users WHERE id = ?").Args(1))
}

func (r *userRepo) Caller() string {
	return r.db.CallerClass()
}

func TestDatabase_CallerClass(t *testing.T) {
	e := newEnv(t, profileSource(), dbproxy.Opts{})
	repo := &userRepo{db: e.db}

	assert.True(t, strings.HasPrefix(repo.Caller(), "go-dbproxy_test.userRepo > Undefined 1"), repo.Caller())
}

func TestDatabase_DefaultTagNamesCaller(t *testing.T) {
	e := newEnv(t, profileSource(), dbproxy.Opts{})
	repo := &userRepo{db: e.db}

	resp, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Query from go-dbproxy_test.userRepo (Load)", resp.Tag)
	assert.Equal(t,
		"SELECT * FROM users WHERE id = ?\n/* Query from go-dbproxy_test.userRepo (Load) */",
		e.drv.LastCall().Query)
	assert.Equal(t, []interface{}{1}, e.drv.LastCall().Args)
}

func TestDatabase_PropagateOnFailure(t *testing.T) {
	e := newEnv(t, profileSource(), dbproxy.Opts{})
	ctx := context.Background()

	rows, err := e.db.GetAll(ctx, "SELECT BROKEN")
	require.Error(t, err)
	assert.Nil(t, rows)

	var qe *dbproxy.QueryError
	require.True(t, errors.As(err, &qe))
	assert.Equal(t, "GetAll", qe.Method)
	assert.Equal(t, balancer.Slave, qe.Destination)
	assert.True(t, errors.Is(err, errSyntax))

	assert.Len(t, e.log.Named("query_failed"), 1)
}

func TestDatabase_SwallowAndReturnSentinel(t *testing.T) {
	e := newEnv(t, profileSource(), dbproxy.Opts{ErrorPolicy: dbproxy.SwallowAndReturnSentinel})
	ctx := context.Background()

	rows, err := e.db.GetAll(ctx, "SELECT BROKEN")
	require.NoError(t, err)
	assert.Nil(t, rows)

	resp, err := e.db.Do(ctx, dbproxy.NewExecRequest("DELETE BROKEN"))
	require.NoError(t, err)
	assert.True(t, resp.Failed)
	assert.Equal(t, "Execute", resp.Method)
	assert.Equal(t, balancer.Master, resp.Destination)

	assert.Len(t, e.log.Named("query_failed"), 2)

	data, err := os.ReadFile(e.errLog)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Error: mock error 1064: syntax error")
	assert.Contains(t, string(data), "================================\nDate: ")
}

func TestDatabase_ConnectionErrorIsAlwaysReturned(t *testing.T) {
	e := newEnv(t, profileSource(), dbproxy.Opts{ErrorPolicy: dbproxy.SwallowAndReturnSentinel})
	ctx := context.Background()
	refused := errors.New("connection refused")
	e.drv.Fail("master", refused)

	_, err := e.db.Execute(ctx, "UPDATE users SET name = 'x'")
	require.Error(t, err)

	var ce *dbproxy.ConnectionError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, balancer.Master, ce.Destination)
	assert.Equal(t, "master", ce.Host)
	assert.True(t, errors.Is(err, refused))
	assert.Len(t, e.log.Named("connection_failed"), 1)
	assert.Empty(t, e.log.Named("query_failed"))

	_, err = e.db.GetAll(ctx, "SELECT 1")
	require.NoError(t, err)
}

func TestDatabase_EscapeSQLString(t *testing.T) {
	e := newEnv(t, profileSource(), dbproxy.Opts{})

	s, err := e.db.EscapeSQLString(context.Background(), "O'Brien")
	require.NoError(t, err)
	assert.Equal(t, `'O\'Brien'`, s)
	assert.Equal(t, "master", e.drv.Opened()[0].Host())
}

func TestDatabase_CloseConnectionReconnects(t *testing.T) {
	e := newEnv(t, profileSource(), dbproxy.Opts{})
	ctx := context.Background()

	require.NoError(t, e.db.CloseConnection(ctx))
	assert.Empty(t, e.drv.Opened())

	_, err := e.db.Execute(ctx, "UPDATE t SET a = 1")
	require.NoError(t, err)
	require.NoError(t, e.db.CloseConnection(ctx))

	opened := e.drv.Opened()
	require.Len(t, opened, 1)
	assert.True(t, opened[0].Closed())

	_, err = e.db.Execute(ctx, "UPDATE t SET a = 2")
	require.NoError(t, err)

	opened = e.drv.Opened()
	require.Len(t, opened, 2)
	assert.Equal(t, 2, opened[1].ID)
	assert.False(t, opened[1].Closed())
	assert.Equal(t, []string{"exec@master", "close@master", "exec@master"}, e.methods())
}

func TestDatabase_SingleServer(t *testing.T) {
	e := newEnv(t, singleSource(), dbproxy.Opts{})
	ctx := context.Background()
	require.True(t, e.db.SingleServer())

	resp, err := e.db.Do(ctx, dbproxy.NewQueryRequest("SELECT 1"))
	require.NoError(t, err)
	assert.Equal(t, balancer.SingleServer, resp.Destination)

	resp, err = e.db.Do(ctx, dbproxy.NewExecRequest("DELETE FROM t"))
	require.NoError(t, err)
	assert.Equal(t, balancer.SingleServer, resp.Destination)

	assert.Equal(t, []string{"single", "single"}, e.drv.Hosts())
	assert.Len(t, e.drv.Opened(), 1)
}

func TestDatabase_Transactions(t *testing.T) {
	e := newEnv(t, profileSource(), dbproxy.Opts{})
	ctx := context.Background()

	require.NoError(t, e.db.StartTrans(ctx))
	require.NoError(t, e.db.StartTrans(ctx))
	_, err := e.db.Execute(ctx, "INSERT INTO t VALUES (1)")
	require.NoError(t, err)
	_, err = e.db.GetAll(ctx, "SELECT * FROM t")
	require.NoError(t, err)

	ok, err := e.db.CompleteTrans(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = e.db.CompleteTrans(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, []string{
		"begin@master",
		"exec@master",
		"query@master",
		"commit@master",
	}, e.methods())

	ok, err = e.db.CompleteTrans(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDatabase_FailedTransactionRollsBack(t *testing.T) {
	e := newEnv(t, profileSource(), dbproxy.Opts{})
	ctx := context.Background()

	require.NoError(t, e.db.StartTrans(ctx))
	assert.False(t, e.db.HasFailedTrans())

	_, err := e.db.Execute(ctx, "INSERT BROKEN")
	require.Error(t, err)
	assert.True(t, e.db.HasFailedTrans())

	ok, err := e.db.CompleteTrans(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, e.db.HasFailedTrans())
	assert.Equal(t, []string{"begin@master", "exec@master", "rollback@master"}, e.methods())
}

func TestDatabase_FailTrans(t *testing.T) {
	e := newEnv(t, profileSource(), dbproxy.Opts{})
	ctx := context.Background()

	require.NoError(t, e.db.FailTrans(ctx))
	assert.False(t, e.db.HasFailedTrans())
	assert.Empty(t, e.drv.Opened())

	require.NoError(t, e.db.StartTrans(ctx))
	require.NoError(t, e.db.FailTrans(ctx))
	assert.True(t, e.db.HasFailedTrans())

	ok, err := e.db.CompleteTrans(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, []string{"begin@master", "rollback@master"}, e.methods())
}

func TestDatabase_CompleteTransWithoutTransaction(t *testing.T) {
	e := newEnv(t, profileSource(), dbproxy.Opts{})

	ok, err := e.db.CompleteTrans(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, e.drv.Opened())
	assert.Empty(t, e.drv.Calls())
}

func TestDatabase_Prepare(t *testing.T) {
	e := newEnv(t, profileSource(), dbproxy.Opts{})
	ctx := context.Background()

	stmt, err := e.db.Prepare(ctx, "SELECT * FROM t WHERE id = ?")
	require.NoError(t, err)
	_, err = stmt.Query(ctx, 7)
	require.NoError(t, err)

	last := e.drv.LastCall()
	assert.Equal(t, "stmt_query", last.Method)
	assert.Equal(t, "replica", last.Host)
	assert.Equal(t, []interface{}{7}, last.Args)
}

func TestDatabase_Accessors(t *testing.T) {
	e := newEnv(t, profileSource(), dbproxy.Opts{})
	ctx := context.Background()

	host, err := e.db.Host(ctx)
	require.NoError(t, err)
	assert.Equal(t, "master", host)

	_, err = e.db.GetAll(ctx, "SELECT 1")
	require.NoError(t, err)
	host, err = e.db.Host(ctx)
	require.NoError(t, err)
	assert.Equal(t, "replica", host)

	name, err := e.db.DatabaseName(ctx)
	require.NoError(t, err)
	assert.Equal(t, "app", name)

	user, err := e.db.User(ctx)
	require.NoError(t, err)
	assert.Equal(t, "app", user)

	mode, err := e.db.FetchMode(ctx)
	require.NoError(t, err)
	assert.Equal(t, driver.FetchAssoc, mode)

	require.NoError(t, e.db.SetFetchMode(ctx, driver.FetchNum))
	mode, err = e.db.FetchMode(ctx)
	require.NoError(t, err)
	assert.Equal(t, driver.FetchNum, mode)
}

func TestDatabase_Debug(t *testing.T) {
	e := newEnv(t, profileSource(), dbproxy.Opts{Debug: true})
	ctx := context.Background()
	e.drv.Handler = test_helpers.QueryContains("FROM users",
		test_helpers.NewMockResponse([]string{"id"}, []interface{}{1}, []interface{}{2}), nil)

	for i := 0; i < 2; i++ {
		_, err := e.db.GetAll(ctx, "SELECT id FROM users WHERE active = ?", 1)
		require.NoError(t, err)
	}
	_, err := e.db.AffectedRows(ctx)
	require.NoError(t, err)
	_, err = e.db.AffectedRows(ctx)
	require.NoError(t, err)

	reg := e.db.Debug()
	records := reg.Queries()
	require.Len(t, records, 4)

	first := records[0]
	assert.Equal(t, "read", first.Type)
	assert.Equal(t, "slave", first.Destination)
	assert.Equal(t, "replica", first.Host)
	assert.Equal(t, "app", first.Database)
	assert.EqualValues(t, 2, first.Rows)
	assert.Contains(t, first.SQL, "SELECT id FROM users WHERE active = ?")
	assert.Contains(t, first.SQL, "\n* 0: 1")
	assert.True(t, strings.HasPrefix(first.Controller, "Undefined 1"), first.Controller)
	assert.False(t, first.Duplicated)

	assert.True(t, records[1].Duplicated)
	assert.Equal(t, 2, reg.Executed(first.SQL))

	assert.Equal(t, "Affected_Rows", records[2].SQL)
	assert.Equal(t, "master", records[2].Destination)
	assert.False(t, records[3].Duplicated)
	assert.Equal(t, 1, reg.Duplicates())
}

func TestDatabase_DebugRecordsFailures(t *testing.T) {
	e := newEnv(t, profileSource(), dbproxy.Opts{Debug: true})

	_, err := e.db.GetAll(context.Background(), "SELECT BROKEN")
	require.Error(t, err)

	errs := e.db.Debug().Errors()
	require.Len(t, errs, 1)
	assert.Equal(t, errSyntax.Error(), errs[0])
}

func TestDatabase_DebugDisabled(t *testing.T) {
	e := newEnv(t, profileSource(), dbproxy.Opts{})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := e.db.GetAll(ctx, "SELECT id FROM users")
		require.NoError(t, err)
	}
	_, _ = e.db.Execute(ctx, "UPDATE BROKEN")
	require.NotEmpty(t, e.drv.Calls())

	reg := e.db.Debug()
	require.NotNil(t, reg)
	assert.Empty(t, reg.Queries())
	assert.Zero(t, reg.Duplicates())
	assert.Empty(t, reg.Errors())
}

func TestDatabase_DebugCloseConnection(t *testing.T) {
	e := newEnv(t, profileSource(), dbproxy.Opts{Debug: true})
	ctx := context.Background()
	e.drv.Handler = func(test_helpers.Call) (*test_helpers.MockResponse, error) {
		return test_helpers.NewMockResult(5, 0), nil
	}

	_, err := e.db.Execute(ctx, "UPDATE t SET a = 1")
	require.NoError(t, err)
	require.NoError(t, e.db.CloseConnection(ctx))

	records := e.db.Debug().Queries()
	require.Len(t, records, 2)
	assert.EqualValues(t, 5, records[0].Rows)

	closed := records[1]
	assert.Equal(t, "master", closed.Host)
	assert.Equal(t, "app", closed.Database)
	assert.Equal(t, "app", closed.User)
	assert.Zero(t, closed.Rows)

	opened := e.drv.Opened()
	require.Len(t, opened, 1)
	assert.True(t, opened[0].Closed())
	assert.Zero(t, opened[0].StaleReads())
}

func TestDatabase_Benchmark(t *testing.T) {
	b := benchmark.New()
	e := newEnv(t, profileSource(), dbproxy.Opts{Timer: b})
	ctx := context.Background()

	_, err := e.db.GetAll(ctx, "SELECT 1")
	require.NoError(t, err)
	_, err = e.db.GetAll(ctx, "SELECT 2")
	require.NoError(t, err)

	assert.Equal(t, 2, b.Count(benchmark.KeyQueries))
	assert.Equal(t, 1, b.Count(benchmark.KeyConnections))
}

func TestDatabase_HealthCacheOutlivesUnitOfWork(t *testing.T) {
	prev := selector.DefaultCache
	selector.DefaultCache = selector.NewMemoryCache()
	t.Cleanup(func() { selector.DefaultCache = prev })

	drv := test_helpers.NewMockDriver()
	errLog := filepath.Join(t.TempDir(), "errors_database.log")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		db := dbproxy.New(profileSource(), dbproxy.Opts{
			Registry: drv.Registry(),
			Logger:   &test_helpers.RecordingLogger{},
			ErrorLog: errorlog.New(errorlog.Opts{Path: errLog}),
		})
		_, err := db.GetAll(ctx, "SELECT 1")
		require.NoError(t, err)
		require.NoError(t, db.Close())
	}

	replicas := 0
	for _, c := range drv.Opened() {
		if c.Host() == "replica" {
			replicas++
		}
	}
	// One health check, then one connection per unit of work.
	assert.Equal(t, 4, replicas)
}

func TestDatabase_DefaultLogger(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Writer()
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(prev) })

	drv := test_helpers.NewMockDriver()
	db := dbproxy.New(singleSource(), dbproxy.Opts{
		Registry: drv.Registry(),
		ErrorLog: errorlog.New(errorlog.Opts{Path: filepath.Join(t.TempDir(), "errors_database.log")}),
	})
	t.Cleanup(func() { db.Close() })

	_, err := db.GetAll(context.Background(), "SELECT * FROM t", 1)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Adding more parameters than query binds is deprecated")
	assert.Contains(t, buf.String(), "event=param_count_deprecated")
}

func TestContext(t *testing.T) {
	e := newEnv(t, profileSource(), dbproxy.Opts{})

	_, err := dbproxy.FromContext(context.Background())
	assert.ErrorIs(t, err, dbproxy.ErrNoDatabase)

	ctx := dbproxy.NewContext(context.Background(), e.db)
	db, err := dbproxy.FromContext(ctx)
	require.NoError(t, err)
	assert.Same(t, e.db, db)
	assert.NotEmpty(t, db.ID())
}
