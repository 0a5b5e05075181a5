package logger

import (
	"fmt"
	"log/slog"
	"time"
)

type LogEvent interface {
	EventName() string
	Message() string
	LogLevel() slog.Level
	LogAttrs() []slog.Attr
}

type baseEvent struct {
	component string
	EventTime time.Time
}

func newBaseEvent(component string) baseEvent {
	return baseEvent{
		component: component,
		EventTime: time.Now(),
	}
}

func (e baseEvent) baseAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String("component", e.component),
		slog.Time("event_time", e.EventTime),
	}
}

type ConnectionOpenedEvent struct {
	baseEvent
	Destination string
	Host        string
	Database    string
	Duration    time.Duration
}

func NewConnectionOpenedEvent(destination, host, database string, d time.Duration) ConnectionOpenedEvent {
	return ConnectionOpenedEvent{
		baseEvent:   newBaseEvent("dbproxy.pool"),
		Destination: destination,
		Host:        host,
		Database:    database,
		Duration:    d,
	}
}

func (e ConnectionOpenedEvent) EventName() string { return "connection_opened" }
func (e ConnectionOpenedEvent) Message() string {
	return fmt.Sprintf("Connected to %s %s", e.Destination, e.Host)
}
func (e ConnectionOpenedEvent) LogLevel() slog.Level { return slog.LevelDebug }
func (e ConnectionOpenedEvent) LogAttrs() []slog.Attr {
	attrs := e.baseAttrs()
	attrs = append(attrs,
		slog.String("event", e.EventName()),
		slog.String("destination", e.Destination),
		slog.String("host", e.Host),
		slog.String("database", e.Database),
		slog.String("duration", e.Duration.String()),
	)
	return attrs
}

type ConnectionFailedEvent struct {
	baseEvent
	Destination string
	Host        string
	Error       error
}

func NewConnectionFailedEvent(destination, host string, err error) ConnectionFailedEvent {
	return ConnectionFailedEvent{
		baseEvent:   newBaseEvent("dbproxy.pool"),
		Destination: destination,
		Host:        host,
		Error:       err,
	}
}

func (e ConnectionFailedEvent) EventName() string    { return "connection_failed" }
func (e ConnectionFailedEvent) Message() string      { return "Connection failed" }
func (e ConnectionFailedEvent) LogLevel() slog.Level { return slog.LevelError }
func (e ConnectionFailedEvent) LogAttrs() []slog.Attr {
	attrs := e.baseAttrs()
	attrs = append(attrs,
		slog.String("event", e.EventName()),
		slog.String("destination", e.Destination),
		slog.String("host", e.Host),
	)
	if e.Error != nil {
		attrs = append(attrs, slog.String("error", e.Error.Error()))
	}
	return attrs
}

type ConnectionClosedEvent struct {
	baseEvent
	Destination string
	Host        string
	Error       error
}

func NewConnectionClosedEvent(destination, host string, err error) ConnectionClosedEvent {
	return ConnectionClosedEvent{
		baseEvent:   newBaseEvent("dbproxy.pool"),
		Destination: destination,
		Host:        host,
		Error:       err,
	}
}

func (e ConnectionClosedEvent) EventName() string { return "connection_closed" }
func (e ConnectionClosedEvent) Message() string   { return "Connection closed" }
func (e ConnectionClosedEvent) LogLevel() slog.Level {
	if e.Error != nil {
		return slog.LevelWarn
	}
	return slog.LevelDebug
}
func (e ConnectionClosedEvent) LogAttrs() []slog.Attr {
	attrs := e.baseAttrs()
	attrs = append(attrs,
		slog.String("event", e.EventName()),
		slog.String("destination", e.Destination),
		slog.String("host", e.Host),
	)
	if e.Error != nil {
		attrs = append(attrs, slog.String("error", e.Error.Error()))
	}
	return attrs
}

type QueryFailedEvent struct {
	baseEvent
	Method      string
	Query       string
	Destination string
	Error       error
}

func NewQueryFailedEvent(method, query, destination string, err error) QueryFailedEvent {
	return QueryFailedEvent{
		baseEvent:   newBaseEvent("dbproxy"),
		Method:      method,
		Query:       query,
		Destination: destination,
		Error:       err,
	}
}

func (e QueryFailedEvent) EventName() string { return "query_failed" }
func (e QueryFailedEvent) Message() string {
	return fmt.Sprintf("%s failed on %s", e.Method, e.Destination)
}
func (e QueryFailedEvent) LogLevel() slog.Level { return slog.LevelError }
func (e QueryFailedEvent) LogAttrs() []slog.Attr {
	attrs := e.baseAttrs()
	attrs = append(attrs,
		slog.String("event", e.EventName()),
		slog.String("method", e.Method),
		slog.String("query", e.Query),
		slog.String("destination", e.Destination),
	)
	if e.Error != nil {
		attrs = append(attrs, slog.String("error", e.Error.Error()))
	}
	return attrs
}

// ParamCountWarningEvent is reported when a query receives more bound
// parameters than it has placeholders. The extra parameters are dropped.
type ParamCountWarningEvent struct {
	baseEvent
	Query    string
	Params   []interface{}
	Bindings int
}

func NewParamCountWarningEvent(query string, params []interface{}, bindings int) ParamCountWarningEvent {
	return ParamCountWarningEvent{
		baseEvent: newBaseEvent("dbproxy"),
		Query:     query,
		Params:    params,
		Bindings:  bindings,
	}
}

func (e ParamCountWarningEvent) EventName() string { return "param_count_deprecated" }
func (e ParamCountWarningEvent) Message() string {
	return "Adding more parameters than query binds is deprecated and will not be allowed in a future version"
}
func (e ParamCountWarningEvent) LogLevel() slog.Level { return slog.LevelWarn }
func (e ParamCountWarningEvent) LogAttrs() []slog.Attr {
	attrs := e.baseAttrs()
	attrs = append(attrs,
		slog.String("event", e.EventName()),
		slog.String("query", e.Query),
		slog.String("params", fmt.Sprintf("%#v", e.Params)),
		slog.Int("bindings", e.Bindings),
	)
	return attrs
}

type NodeDownEvent struct {
	baseEvent
	NodeID string
	Host   string
	Error  error
}

func NewNodeDownEvent(id, host string, err error) NodeDownEvent {
	return NodeDownEvent{
		baseEvent: newBaseEvent("dbproxy.selector"),
		NodeID:    id,
		Host:      host,
		Error:     err,
	}
}

func (e NodeDownEvent) EventName() string { return "node_down" }
func (e NodeDownEvent) Message() string {
	return fmt.Sprintf("[LOAD BALANCER] SERVER IS DOWN! %s: %s", e.Host, e.Error)
}
func (e NodeDownEvent) LogLevel() slog.Level { return slog.LevelWarn }
func (e NodeDownEvent) LogAttrs() []slog.Attr {
	attrs := e.baseAttrs()
	attrs = append(attrs,
		slog.String("event", e.EventName()),
		slog.String("node", e.NodeID),
		slog.String("host", e.Host),
	)
	if e.Error != nil {
		attrs = append(attrs, slog.String("error", e.Error.Error()))
	}
	return attrs
}

type HealthCacheFailedEvent struct {
	baseEvent
	Key   string
	Error error
}

func NewHealthCacheFailedEvent(key string, err error) HealthCacheFailedEvent {
	return HealthCacheFailedEvent{
		baseEvent: newBaseEvent("dbproxy.selector"),
		Key:       key,
		Error:     err,
	}
}

func (e HealthCacheFailedEvent) EventName() string    { return "health_cache_failed" }
func (e HealthCacheFailedEvent) Message() string      { return "Node health cache unavailable" }
func (e HealthCacheFailedEvent) LogLevel() slog.Level { return slog.LevelWarn }
func (e HealthCacheFailedEvent) LogAttrs() []slog.Attr {
	attrs := e.baseAttrs()
	attrs = append(attrs,
		slog.String("event", e.EventName()),
		slog.String("key", e.Key),
	)
	if e.Error != nil {
		attrs = append(attrs, slog.String("error", e.Error.Error()))
	}
	return attrs
}

type ErrorLogWriteFailedEvent struct {
	baseEvent
	Path  string
	Error error
}

func NewErrorLogWriteFailedEvent(path string, err error) ErrorLogWriteFailedEvent {
	return ErrorLogWriteFailedEvent{
		baseEvent: newBaseEvent("dbproxy.errorlog"),
		Path:      path,
		Error:     err,
	}
}

func (e ErrorLogWriteFailedEvent) EventName() string    { return "error_log_write_failed" }
func (e ErrorLogWriteFailedEvent) Message() string      { return "Failed to write database error log" }
func (e ErrorLogWriteFailedEvent) LogLevel() slog.Level { return slog.LevelError }
func (e ErrorLogWriteFailedEvent) LogAttrs() []slog.Attr {
	attrs := e.baseAttrs()
	attrs = append(attrs,
		slog.String("event", e.EventName()),
		slog.String("path", e.Path),
	)
	if e.Error != nil {
		attrs = append(attrs, slog.String("error", e.Error.Error()))
	}
	return attrs
}
