package query

import (
	"fmt"
	"sort"
	"strings"
)

// QuoteFunc quotes a single SQL identifier for a particular dialect.
type QuoteFunc func(string) string

// OrderClause represents a single column ordering directive.
type OrderClause struct {
	Column    string // Validated column name.
	Direction string // "ASC" or "DESC".
}

// String returns the SQL fragment for this order clause, e.g. "created_at DESC".
func (o OrderClause) String() string {
	return o.Column + " " + o.Direction
}

// Sort is a validated ordering request resolved from a public field name
// (e.g. "createdAt") to its column (e.g. "created_at").
type Sort struct {
	Field     string
	Column    string
	Direction string
}

// ParseSort resolves field against the columns whitelist and normalizes
// order to ASC or DESC. An empty field selects defaultField and an empty
// order selects ASC. Matching of order is case-insensitive.
func ParseSort(field, order string, columns map[string]string, defaultField string) (Sort, error) {
	field = strings.TrimSpace(field)
	if field == "" {
		field = defaultField
	}
	col, ok := columns[field]
	if !ok {
		return Sort{}, fmt.Errorf("invalid sort field %q: must be one of %s", field, strings.Join(sortedKeys(columns), ", "))
	}
	if err := ValidateIdentifier(col); err != nil {
		return Sort{}, fmt.Errorf("invalid sort column: %w", err)
	}

	dir, err := ParseDirection(order)
	if err != nil {
		return Sort{}, err
	}
	return Sort{Field: field, Column: col, Direction: dir}, nil
}

// ParseDirection normalizes an order string to ASC or DESC. Empty means ASC.
func ParseDirection(order string) (string, error) {
	switch strings.ToUpper(strings.TrimSpace(order)) {
	case "", "ASC":
		return "ASC", nil
	case "DESC":
		return "DESC", nil
	default:
		return "", fmt.Errorf("invalid order direction %q: must be asc or desc", order)
	}
}

// Clauses returns the ORDER BY clauses for s with tiebreak appended in the
// same direction, so that rows with equal sort keys keep a stable order.
// The tiebreak is omitted when it is already the sort column.
func (s Sort) Clauses(tiebreak string) []OrderClause {
	clauses := []OrderClause{{Column: s.Column, Direction: s.Direction}}
	if tiebreak != "" && tiebreak != s.Column {
		clauses = append(clauses, OrderClause{Column: tiebreak, Direction: s.Direction})
	}
	return clauses
}

// BuildOrderSQL builds an ORDER BY SQL fragment from order clauses, applying
// the given quote function to column names.
func BuildOrderSQL(clauses []OrderClause, quoteFn QuoteFunc) string {
	if len(clauses) == 0 {
		return ""
	}
	parts := make([]string, len(clauses))
	for i, c := range clauses {
		parts[i] = quoteFn(c.Column) + " " + c.Direction
	}
	return "ORDER BY " + strings.Join(parts, ", ")
}

// Qualify returns a QuoteFunc that prefixes every quoted column with alias.
func Qualify(alias string, quoteFn QuoteFunc) QuoteFunc {
	return func(name string) string {
		return alias + "." + quoteFn(name)
	}
}

// PostgresQuote returns a PostgreSQL-style double-quoted identifier. SQLite
// accepts the same form.
func PostgresQuote(name string) string {
	// Escape any embedded double quotes by doubling them.
	escaped := strings.ReplaceAll(name, `"`, `""`)
	return `"` + escaped + `"`
}

// MySQLQuote returns a MySQL-style backtick-quoted identifier.
func MySQLQuote(name string) string {
	escaped := strings.ReplaceAll(name, "`", "``")
	return "`" + escaped + "`"
}

// SQLServerQuote returns a SQL Server-style bracket-quoted identifier.
func SQLServerQuote(name string) string {
	escaped := strings.ReplaceAll(name, "]", "]]")
	return "[" + escaped + "]"
}

// BuildLimitOffset returns a LIMIT/OFFSET SQL fragment suitable for
// PostgreSQL, MySQL and SQLite. Returns empty string if limit is 0.
func BuildLimitOffset(limit, offset int) string {
	if limit <= 0 {
		return ""
	}
	s := fmt.Sprintf("LIMIT %d", limit)
	if offset > 0 {
		s += fmt.Sprintf(" OFFSET %d", offset)
	}
	return s
}

// BuildOffsetFetch returns the SQL Server paging fragment. SQL Server only
// accepts it after an ORDER BY. Returns empty string if limit is 0.
func BuildOffsetFetch(limit, offset int) string {
	if limit <= 0 {
		return ""
	}
	if offset < 0 {
		offset = 0
	}
	return fmt.Sprintf("OFFSET %d ROWS FETCH NEXT %d ROWS ONLY", offset, limit)
}

// LikeEscape is the escape character used by ContainsPattern. Queries must
// declare it with ESCAPE '!'.
const LikeEscape = '!'

// ContainsPattern builds a LIKE pattern matching any value that contains s.
// The LIKE wildcards % and _ and the escape character itself are escaped, as
// is every rune in extra (SQL Server also treats '[' as special).
func ContainsPattern(s string, extra string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('%')
	for _, r := range s {
		if r == '%' || r == '_' || r == LikeEscape || strings.ContainsRune(extra, r) {
			b.WriteRune(LikeEscape)
		}
		b.WriteRune(r)
	}
	b.WriteByte('%')
	return b.String()
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
