package dbx

import "strings"

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ContainsPattern turns user input into an ILIKE operand matching s as a
// literal substring. The result is always passed as a query argument.
func ContainsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

// Scanner is satisfied by *sql.Row and *sql.Rows.
type Scanner interface {
	Scan(dest ...any) error
}
