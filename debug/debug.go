// Package debug records what every proxied call did, for the development
// toolbar and for spotting duplicated queries.
package debug

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ice-blockchain/go-dbproxy/driver"
)

// MaxCallerDepth is how many distinct owners a caller chain shows.
const MaxCallerDepth = 4

// Methods recorded under their own name instead of their SQL. They are
// never flagged as duplicates.
var whitelist = map[string]bool{
	"prepare":       true,
	"affected_rows": true,
	"insert_id":     true,
	"errorno":       true,
	"errormsg":      true,
}

// Invocation is everything known about one proxied call.
type Invocation struct {
	Method      string
	Query       string
	Params      []interface{}
	Tag         string
	Destination string
	Read        bool
	Host        string
	Database    string
	User        string
	Elapsed     time.Duration
	// Result is what the call returned, single rows and values wrapped in
	// a one element slice.
	Result interface{}
	// AffectedRows reported by the connection after a write.
	AffectedRows int64
	Error        error
	Controller   string
}

// Record is the debug entry of one call.
type Record struct {
	ID          string
	Tag         string
	SQL         string
	Type        string
	Destination string
	Host        string
	Database    string
	User        string
	Controller  string
	ResultSet   interface{}
	Rows        int64
	Time        time.Duration
	Error       string
	Duplicated  bool
}

// Registry accumulates the records of one unit of work. It is not safe for
// concurrent use.
type Registry struct {
	queries    []Record
	executed   map[string]int
	duplicates int
	errors     []string
}

func NewRegistry() *Registry {
	return &Registry{executed: make(map[string]int)}
}

func (r *Registry) Queries() []Record {
	ret := make([]Record, len(r.queries))
	copy(ret, r.queries)
	return ret
}

func (r *Registry) Duplicates() int {
	return r.duplicates
}

func (r *Registry) Errors() []string {
	ret := make([]string, len(r.errors))
	copy(ret, r.errors)
	return ret
}

// Executed returns how many times the rendered sql was recorded.
func (r *Registry) Executed(sql string) int {
	return r.executed[sql]
}

func (r *Registry) Reset() {
	r.queries = nil
	r.executed = make(map[string]int)
	r.duplicates = 0
	r.errors = nil
}

// Record builds the record of inv, flags it as duplicate if its SQL was
// already seen and stores it.
func (r *Registry) Record(inv Invocation) Record {
	method := strings.ToLower(inv.Method)
	whitelisted := whitelist[method]

	rec := Record{
		ID:          uuid.NewString(),
		Tag:         inv.Tag,
		Type:        "write",
		Destination: inv.Destination,
		Host:        inv.Host,
		Database:    inv.Database,
		User:        inv.User,
		Controller:  inv.Controller,
		ResultSet:   resultSet(inv.Method, inv.Result),
		Time:        inv.Elapsed,
	}
	if whitelisted {
		rec.SQL = inv.Method
	} else {
		rec.SQL = RenderSQL(inv.Query, inv.Params)
	}
	if inv.Error != nil {
		rec.Error = inv.Error.Error()
	}

	switch {
	case inv.Read:
		rec.Type = "read"
		rec.Rows = countRows(inv.Result)
	case method != "close":
		rec.Rows = inv.AffectedRows
	}

	if !whitelisted && r.executed[rec.SQL] > 0 {
		rec.Duplicated = true
		r.duplicates++
	}
	r.executed[rec.SQL]++

	r.queries = append(r.queries, rec)
	if rec.Error != "" {
		r.errors = append(r.errors, rec.Error)
	}
	return rec
}

// RenderSQL returns query followed by one "* <position>: <value>" line per
// parameter.
func RenderSQL(query string, params []interface{}) string {
	if len(params) == 0 {
		return query
	}
	var b strings.Builder
	b.WriteString(query)
	for i, p := range params {
		fmt.Fprintf(&b, "\n* %d: %v", i, p)
	}
	return b.String()
}

// resultSet shows integer results as a one row table keyed by the method.
func resultSet(method string, result interface{}) interface{} {
	switch n := result.(type) {
	case int, int32, int64, uint, uint32, uint64:
		return []map[string]interface{}{{method: n}}
	}
	return result
}

func countRows(result interface{}) int64 {
	switch r := result.(type) {
	case nil:
		return 0
	case *driver.ResultSet:
		return int64(r.Len())
	case []driver.Row:
		return int64(len(r))
	case []interface{}:
		return int64(len(r))
	default:
		return 1
	}
}
