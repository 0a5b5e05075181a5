package sqldb

import "strings"

var mysqlEscaper = strings.NewReplacer(
	`\`, `\\`,
	`'`, `\'`,
	`"`, `\"`,
	"\x00", `\0`,
	"\n", `\n`,
	"\r", `\r`,
	"\x1a", `\Z`,
)

// QuoteMySQL quotes s for a MySQL server running without
// NO_BACKSLASH_ESCAPES.
func QuoteMySQL(s string) string {
	return "'" + mysqlEscaper.Replace(s) + "'"
}

// QuoteStandard quotes s the SQL standard way, doubling single quotes.
func QuoteStandard(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
