package dbproxy

import (
	"context"

	"github.com/ice-blockchain/go-dbproxy/driver"
)

// txState tracks smart transactions: nested starts only count, and a
// failure anywhere inside makes the outermost complete roll back.
type txState struct {
	depth  int
	failed bool
}

func (t *txState) active() bool {
	return t.depth > 0
}

func (t *txState) start(ctx context.Context, conn driver.Conn) (bool, error) {
	t.depth++
	if t.depth > 1 {
		return true, nil
	}
	if err := conn.Begin(ctx); err != nil {
		t.reset()
		return false, err
	}
	t.failed = false
	return true, nil
}

func (t *txState) complete(ctx context.Context, conn driver.Conn) (bool, error) {
	switch {
	case t.depth == 0:
		return false, nil
	case t.depth > 1:
		t.depth--
		return !t.failed, nil
	}

	failed := t.failed
	t.reset()
	if failed {
		return false, conn.Rollback(ctx)
	}
	if err := conn.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (t *txState) fail() bool {
	if !t.active() {
		return false
	}
	t.failed = true
	return true
}

func (t *txState) reset() {
	t.depth, t.failed = 0, false
}
