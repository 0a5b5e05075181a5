package dbproxy

import (
	"reflect"
	"strings"

	"github.com/ice-blockchain/go-dbproxy/logger"
)

// normalizeParams unwraps a parameter list passed as the single element of
// another list, drops parameters beyond the placeholders of query and
// returns nil instead of an empty list.
func (db *Database) normalizeParams(query string, params []interface{}) []interface{} {
	if len(params) == 0 {
		return nil
	}
	if nested, ok := asList(params[0]); ok {
		params = nested
	}

	bindings := strings.Count(query, "?")
	if len(params) > bindings {
		db.opts.Logger.Report(logger.NewParamCountWarningEvent(query, params, bindings))
		params = params[:bindings]
	}
	if len(params) == 0 {
		return nil
	}
	return params
}

// asList returns v as a parameter list if it is a slice or an array, byte
// slices excepted since drivers take them as a single value.
func asList(v interface{}) ([]interface{}, bool) {
	switch l := v.(type) {
	case []interface{}:
		return l, true
	case []byte:
		return nil, false
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	ret := make([]interface{}, rv.Len())
	for i := range ret {
		ret[i] = rv.Index(i).Interface()
	}
	return ret, true
}
