package sqldb

import (
	"database/sql"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ice-blockchain/go-dbproxy/driver"
)

func scan(rows *sql.Rows, mode driver.FetchMode) (*driver.ResultSet, error) {
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}
	dbTypes := make([]string, len(types))
	for i, t := range types {
		dbTypes[i] = t.DatabaseTypeName()
	}

	var values [][]interface{}
	for rows.Next() {
		dest := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range dest {
			ptrs[i] = &dest[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i := range dest {
			dest[i] = convertValue(dest[i], dbTypes[i])
		}
		values = append(values, dest)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return driver.NewResultSet(columns, values, mode), nil
}

// convertValue turns the raw bytes most text-protocol drivers return into
// the value a caller expects: decimals stay exact, binary stays binary and
// everything else becomes a string.
func convertValue(v interface{}, dbType string) interface{} {
	b, ok := v.([]byte)
	if !ok {
		return v
	}

	switch strings.ToUpper(dbType) {
	case "DECIMAL", "NUMERIC", "NEWDECIMAL":
		if d, err := decimal.NewFromString(string(b)); err == nil {
			return d
		}
	case "BLOB", "TINYBLOB", "MEDIUMBLOB", "LONGBLOB", "BINARY", "VARBINARY", "BIT", "GEOMETRY":
		return b
	}
	return string(b)
}
