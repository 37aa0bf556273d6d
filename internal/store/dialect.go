package store

import (
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/getscaley/scaley/internal/query"
)

// Supported dialect names as accepted in configuration.
const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
	DialectMySQL    = "mysql"
	DialectMSSQL    = "mssql"
)

// dialect captures the per-database differences the store cares about:
// which database/sql driver to load, how to quote and page, how to get the
// id of a new row, and which DDL creates the schema.
type dialect struct {
	name       string
	driverName string
	quote      query.QuoteFunc
	// likeExtra lists runes that are special inside LIKE for this dialect
	// beyond % and _.
	likeExtra string
	// returning is "suffix" for INSERT ... RETURNING id, "output" for
	// INSERT ... OUTPUT INSERTED.id, or "" to use LastInsertId.
	returning  string
	migrations []string
	dsn        func(string) (string, error)
}

var dialects = map[string]*dialect{
	DialectSQLite: {
		name:       DialectSQLite,
		driverName: "sqlite",
		quote:      query.PostgresQuote,
		migrations: sqliteMigrations,
		dsn:        sqliteDSN,
	},
	DialectPostgres: {
		name:       DialectPostgres,
		driverName: "pgx",
		quote:      query.PostgresQuote,
		returning:  "suffix",
		migrations: postgresMigrations,
		dsn:        passthroughDSN,
	},
	DialectMySQL: {
		name:       DialectMySQL,
		driverName: "mysql",
		quote:      query.MySQLQuote,
		migrations: mysqlMigrations,
		dsn:        mysqlDSN,
	},
	DialectMSSQL: {
		name:       DialectMSSQL,
		driverName: "sqlserver",
		quote:      query.SQLServerQuote,
		likeExtra:  "[",
		returning:  "output",
		migrations: mssqlMigrations,
		dsn:        passthroughDSN,
	},
}

// dialectAliases maps alternative driver names onto a supported dialect.
var dialectAliases = map[string]string{
	"sqlite3":    DialectSQLite,
	"postgresql": DialectPostgres,
	"pgx":        DialectPostgres,
	"mariadb":    DialectMySQL,
	"sqlserver":  DialectMSSQL,
}

// NormalizeDriver returns the canonical dialect name for driver, accepting
// the common aliases (e.g. "mariadb" → "mysql").
func NormalizeDriver(driver string) (string, error) {
	name := strings.ToLower(strings.TrimSpace(driver))
	if alias, ok := dialectAliases[name]; ok {
		name = alias
	}
	if _, ok := dialects[name]; !ok {
		return "", fmt.Errorf("unsupported database driver %q (supported: sqlite, postgres, mysql, mariadb, mssql)", driver)
	}
	return name, nil
}

func lookupDialect(driver string) (*dialect, error) {
	name, err := NormalizeDriver(driver)
	if err != nil {
		return nil, err
	}
	return dialects[name], nil
}

// paginate returns the paging fragment placed after ORDER BY.
func (d *dialect) paginate(limit, offset int) string {
	if d.name == DialectMSSQL {
		return query.BuildOffsetFetch(limit, offset)
	}
	return query.BuildLimitOffset(limit, offset)
}

// insertSQL builds a named-parameter INSERT for table that yields the new
// id according to the dialect's returning strategy.
func (d *dialect) insertSQL(table string, cols []string) string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = ":" + c
	}
	colList := strings.Join(cols, ", ")
	valList := strings.Join(names, ", ")

	switch d.returning {
	case "suffix":
		return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING id", table, colList, valList)
	case "output":
		return fmt.Sprintf("INSERT INTO %s (%s) OUTPUT INSERTED.id VALUES (%s)", table, colList, valList)
	default:
		return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, colList, valList)
	}
}

func passthroughDSN(dsn string) (string, error) {
	if dsn == "" {
		return "", fmt.Errorf("database dsn is required")
	}
	return dsn, nil
}

// sqliteDSN turns a file path (or ":memory:") into a modernc DSN with
// foreign keys enabled on every connection.
func sqliteDSN(dsn string) (string, error) {
	if dsn == "" {
		dsn = ":memory:"
	}
	params := []string{"_pragma=foreign_keys(1)"}
	if dsn != ":memory:" {
		params = append(params, "_pragma=busy_timeout(5000)", "_pragma=journal_mode(WAL)")
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(params, "&"), nil
}

// mysqlDSN forces parseTime so DATETIME columns scan into time.Time.
func mysqlDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	return cfg.FormatDSN(), nil
}
