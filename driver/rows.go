package driver

import "strconv"

// FetchMode controls how rows are keyed.
type FetchMode uint32

const (
	FetchDefault FetchMode = iota // Driver's own choice, same as FetchBoth.
	FetchNum                      // Rows keyed by column ordinal: "0", "1", ...
	FetchAssoc                    // Rows keyed by column name.
	FetchBoth                     // Rows keyed by both.
)

func (m FetchMode) String() string {
	switch m {
	case FetchNum:
		return "num"
	case FetchAssoc:
		return "assoc"
	case FetchBoth:
		return "both"
	default:
		return "default"
	}
}

// Row is one result row shaped by the fetch mode of the connection.
type Row map[string]interface{}

// ResultSet holds every row returned by a query along with the column
// order, which a Row alone can't give.
type ResultSet struct {
	Columns []string
	Rows    []Row
	Mode    FetchMode
}

// NewResultSet shapes raw values (one slice per row, in column order)
// according to mode.
func NewResultSet(columns []string, values [][]interface{}, mode FetchMode) *ResultSet {
	rs := &ResultSet{
		Columns: columns,
		Rows:    make([]Row, 0, len(values)),
		Mode:    mode,
	}
	for _, vals := range values {
		row := make(Row, len(columns))
		for i, col := range columns {
			var v interface{}
			if i < len(vals) {
				v = vals[i]
			}
			if mode != FetchAssoc {
				row[strconv.Itoa(i)] = v
			}
			if mode != FetchNum {
				row[col] = v
			}
		}
		rs.Rows = append(rs.Rows, row)
	}
	return rs
}

// First returns the first row, or nil if there are none.
func (rs *ResultSet) First() Row {
	if rs == nil || len(rs.Rows) == 0 {
		return nil
	}
	return rs.Rows[0]
}

// Scalar returns the first column of the first row.
func (rs *ResultSet) Scalar() (interface{}, bool) {
	row := rs.First()
	if row == nil || len(rs.Columns) == 0 {
		return nil, false
	}
	if rs.Mode == FetchNum {
		v, ok := row["0"]
		return v, ok
	}
	v, ok := row[rs.Columns[0]]
	return v, ok
}

func (rs *ResultSet) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.Rows)
}
