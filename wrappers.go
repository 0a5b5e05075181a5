package dbproxy

import (
	"context"

	"github.com/ice-blockchain/go-dbproxy/driver"
)

// The helpers below run the matching request through Do with a default tag.
// Under SwallowAndReturnSentinel a driver failure yields zero values and a
// nil error; use Do and Response.Failed to tell them apart.

// GetAll returns every row of query.
func (db *Database) GetAll(ctx context.Context, query string, args ...interface{}) ([]driver.Row, error) {
	resp, err := db.Do(ctx, NewQueryRequest(query).Args(args...))
	if err != nil {
		return nil, err
	}
	return resp.Rows, nil
}

// GetRow returns the first row of query, nil if there is none.
func (db *Database) GetRow(ctx context.Context, query string, args ...interface{}) (driver.Row, error) {
	resp, err := db.Do(ctx, NewRowRequest(query).Args(args...))
	if err != nil {
		return nil, err
	}
	return resp.Row, nil
}

// GetOne returns the first column of the first row of query.
func (db *Database) GetOne(ctx context.Context, query string, args ...interface{}) (interface{}, error) {
	resp, err := db.Do(ctx, NewValueRequest(query).Args(args...))
	if err != nil {
		return nil, err
	}
	return resp.Value, nil
}

// Execute runs a statement that doesn't return rows.
func (db *Database) Execute(ctx context.Context, query string, args ...interface{}) (driver.Result, error) {
	resp, err := db.Do(ctx, NewExecRequest(query).Args(args...))
	if err != nil {
		return driver.Result{}, err
	}
	return resp.Result, nil
}

// Prepare prepares query on the connection it routes to.
func (db *Database) Prepare(ctx context.Context, query string) (driver.Stmt, error) {
	resp, err := db.Do(ctx, NewPrepareRequest(query))
	if err != nil {
		return nil, err
	}
	return resp.Stmt, nil
}

// InsertID returns the id generated by the last insert on the master.
func (db *Database) InsertID(ctx context.Context) (int64, error) {
	resp, err := db.Do(ctx, NewMetaRequest(MetaInsertID))
	if err != nil {
		return 0, err
	}
	n, _ := resp.Value.(int64)
	return n, nil
}

// AffectedRows returns the rows changed by the last write on the master.
func (db *Database) AffectedRows(ctx context.Context) (int64, error) {
	resp, err := db.Do(ctx, NewMetaRequest(MetaAffectedRows))
	if err != nil {
		return 0, err
	}
	n, _ := resp.Value.(int64)
	return n, nil
}

func (db *Database) ErrorNo(ctx context.Context) (int, error) {
	resp, err := db.Do(ctx, NewMetaRequest(MetaErrorNo))
	if err != nil {
		return 0, err
	}
	n, _ := resp.Value.(int)
	return n, nil
}

func (db *Database) ErrorMsg(ctx context.Context) (string, error) {
	resp, err := db.Do(ctx, NewMetaRequest(MetaErrorMsg))
	if err != nil {
		return "", err
	}
	s, _ := resp.Value.(string)
	return s, nil
}

// StartTrans opens a smart transaction on the master.
func (db *Database) StartTrans(ctx context.Context) error {
	_, err := db.Do(ctx, NewTxRequest(TxStart))
	return err
}

// CompleteTrans ends the smart transaction. It returns false when the
// transaction was rolled back.
func (db *Database) CompleteTrans(ctx context.Context) (bool, error) {
	resp, err := db.Do(ctx, NewTxRequest(TxComplete))
	if err != nil {
		return false, err
	}
	ok, _ := resp.Value.(bool)
	return ok, nil
}

// FailTrans makes the open transaction roll back on CompleteTrans.
func (db *Database) FailTrans(ctx context.Context) error {
	_, err := db.Do(ctx, NewTxRequest(TxFail))
	return err
}

// CloseConnection closes the connection of the current destination. The
// next request reconnects.
func (db *Database) CloseConnection(ctx context.Context) error {
	_, err := db.Do(ctx, NewCloseRequest())
	return err
}
