package debug

import (
	"runtime"
	"strconv"
	"strings"
)

// Frame is a stack frame reduced to what the debug output shows.
type Frame struct {
	// Package is the import path, e.g. github.com/acme/app/models.
	Package string
	// Type is the receiver type name, empty for plain functions.
	Type     string
	Function string
}

// Owner returns "<pkg>.<Type>" for methods and "<pkg>" for functions, pkg
// being the last element of the import path.
func (f Frame) Owner() string {
	pkg := f.Package[strings.LastIndex(f.Package, "/")+1:]
	if f.Type == "" {
		return pkg
	}
	return pkg + "." + f.Type
}

// Stack returns the frames of the calling goroutine, starting with the
// caller of Stack when skip is 0.
func Stack(skip int) []Frame {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(skip+2, pcs)
	frames := runtime.CallersFrames(pcs[:n])

	var ret []Frame
	for {
		f, more := frames.Next()
		if f.Function != "" {
			ret = append(ret, ParseFunction(f.Function))
		}
		if !more {
			break
		}
	}
	return ret
}

// ParseFunction splits a fully qualified function name as reported by the
// runtime, e.g. "github.com/acme/app/models.(*User).Load.func1".
func ParseFunction(name string) Frame {
	name = strings.ReplaceAll(name, "[...]", "")
	slash := strings.LastIndex(name, "/") + 1
	dot := strings.Index(name[slash:], ".")
	if dot < 0 {
		return Frame{Function: name}
	}
	f := Frame{Package: name[:slash+dot]}
	rest := name[slash+dot+1:]

	switch {
	case strings.HasPrefix(rest, "(*"):
		end := strings.Index(rest, ")")
		if end < 0 {
			f.Function = rest
			return f
		}
		f.Type = stripTypeParams(rest[2:end])
		rest = strings.TrimPrefix(rest[end+1:], ".")
	default:
		parts := strings.SplitN(rest, ".", 2)
		if len(parts) == 2 && !isClosure(parts[1]) {
			f.Type = stripTypeParams(parts[0])
			rest = parts[1]
		}
	}

	if i := strings.Index(rest, "."); i >= 0 {
		rest = rest[:i]
	}
	f.Function = rest
	return f
}

func stripTypeParams(t string) string {
	if i := strings.Index(t, "["); i >= 0 {
		return t[:i]
	}
	return t
}

// isClosure reports whether s names a closure ("func1", "func2.3", "0"...)
// or a deferred/go wrapper rather than a method.
func isClosure(s string) bool {
	if strings.HasPrefix(s, "gowrap") || strings.HasPrefix(s, "deferwrap") {
		return true
	}
	if _, err := strconv.Atoi(strings.SplitN(s, ".", 2)[0]); err == nil {
		return true
	}
	if !strings.HasPrefix(s, "func") {
		return false
	}
	digits := strings.SplitN(strings.TrimPrefix(s, "func"), ".", 2)[0]
	_, err := strconv.Atoi(digits)
	return err == nil
}

// CallerChain joins the owners of frames with " > ", keeping the first max
// distinct ones. Plain functions have no owning type and are labelled
// "Undefined 1", "Undefined 2"... in the order they are met.
func CallerChain(frames []Frame, max int) string {
	seen := make(map[string]bool)
	var owners []string
	undefined := 0
	for _, f := range frames {
		var owner string
		if f.Type == "" {
			undefined++
			owner = "Undefined " + strconv.Itoa(undefined)
		} else {
			owner = f.Owner()
		}
		if seen[owner] {
			continue
		}
		seen[owner] = true
		owners = append(owners, owner)
		if len(owners) == max {
			break
		}
	}
	return strings.Join(owners, " > ")
}

// FirstOutside returns the first frame that doesn't belong to pkg.
func FirstOutside(frames []Frame, pkg string) (Frame, bool) {
	for _, f := range frames {
		if f.Package != pkg {
			return f, true
		}
	}
	return Frame{}, false
}
