package dbproxy

import (
	"errors"
	"fmt"

	"github.com/ice-blockchain/go-dbproxy/balancer"
	"github.com/ice-blockchain/go-dbproxy/pool"
)

var ErrNoDatabase = errors.New("no database in context")

// ConnectionError is returned when a destination can't be connected to,
// whatever the error policy.
type ConnectionError = pool.ConnectionError

// QueryError is a driver failure returned under PropagateOnFailure.
type QueryError struct {
	Method      string
	Query       string
	Destination balancer.Destination
	Err         error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("%s on %s failed: %s", e.Method, e.Destination, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// ErrorPolicy decides what a driver failure turns into.
type ErrorPolicy uint32

const (
	// PropagateOnFailure returns a *QueryError. It is what non-interactive
	// callers such as command line tools want.
	PropagateOnFailure ErrorPolicy = iota
	// SwallowAndReturnSentinel returns a Response with Failed set and a nil
	// error. The failure is still logged and recorded.
	SwallowAndReturnSentinel
)

func (p ErrorPolicy) String() string {
	if p == SwallowAndReturnSentinel {
		return "swallow"
	}
	return "propagate"
}
