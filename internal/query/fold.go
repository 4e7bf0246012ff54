package query

import (
	"database/sql/driver"
	"strings"

	"modernc.org/sqlite"
)

// foldFunc is the SQL scalar applied to searched columns. SQLite's LOWER
// only folds ASCII.
const foldFunc = "casefold"

func init() {
	sqlite.MustRegisterDeterministicScalarFunction(foldFunc, 1, casefold)
}

// fold lowercases s the same way casefold does in SQL.
func fold(s string) string {
	return strings.ToLower(s)
}

func casefold(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case nil:
		return nil, nil
	case string:
		return fold(v), nil
	case []byte:
		return fold(string(v)), nil
	default:
		return v, nil
	}
}
