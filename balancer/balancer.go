// Package balancer decides which server a proxied call runs on.
package balancer

import (
	"strings"
	"unicode"
)

type Destination uint32

const (
	SingleServer Destination = iota // No profile configured, one server does everything.
	Master                          // The writable server of a profile.
	Slave                           // One of the read-only servers of a profile.
)

func (d Destination) String() string {
	switch d {
	case Master:
		return "master"
	case Slave:
		return "slave"
	default:
		return "single_server"
	}
}

var readPrefixes = []string{"select", "show ", "desc "}

// IsReadOperation reports whether query only reads data. Leading
// whitespace and an opening parenthesis are ignored, so "(SELECT ...)
// UNION (SELECT ...)" is a read.
func IsReadOperation(query string) bool {
	trimmed := strings.TrimLeftFunc(query, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsControl(r)
	})
	trimmed = strings.TrimLeft(trimmed, "(")
	trimmed = strings.ToLower(strings.TrimLeftFunc(trimmed, unicode.IsSpace))

	for _, prefix := range readPrefixes {
		if strings.HasPrefix(trimmed, prefix) {
			return true
		}
	}
	return false
}

// Router resolves the destination of every call made in one unit of work.
// It is not safe for concurrent use.
type Router struct {
	single  bool
	sticky  bool
	current Destination
}

// NewRouter returns a router. With singleServer set every call goes to
// SingleServer.
func NewRouter(singleServer bool) *Router {
	r := &Router{single: singleServer, current: Master}
	if singleServer {
		r.current = SingleServer
	}
	return r
}

// NextQueryInMaster forces the next routed call to the master.
func (r *Router) NextQueryInMaster() {
	r.sticky = true
}

// Sticky reports whether the next call is forced to the master.
func (r *Router) Sticky() bool {
	return r.sticky
}

// Reset clears the sticky flag.
func (r *Router) Reset() {
	r.sticky = false
}

// Route classifies query and picks its destination. alwaysMaster is set for
// calls whose result only makes sense on the server that just wrote, such as
// affected rows and last insert id. The sticky flag is consumed.
func (r *Router) Route(query string, alwaysMaster bool) (Destination, bool) {
	isRead := IsReadOperation(query)
	defer r.Reset()

	switch {
	case r.single:
		r.current = SingleServer
	case r.sticky || alwaysMaster || !isRead:
		r.current = Master
	default:
		r.current = Slave
	}
	return r.current, isRead
}

// Current returns the destination of the last routed call.
func (r *Router) Current() Destination {
	return r.current
}
