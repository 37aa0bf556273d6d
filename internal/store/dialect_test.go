package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	mssql "github.com/microsoft/go-mssqldb"

	"github.com/getscaley/scaley/internal/model"
)

// newMockStore wires a Store for dialect name onto a sqlmock connection so
// the generated SQL of non-SQLite backends can be asserted without a server.
func newMockStore(t *testing.T, name string) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	d := dialects[name]
	return &Store{db: sqlx.NewDb(db, d.driverName), dialect: d}, mock
}

func TestNormalizeDriver(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"sqlite", DialectSQLite, false},
		{"SQLite3", DialectSQLite, false},
		{"postgres", DialectPostgres, false},
		{"postgresql", DialectPostgres, false},
		{"pgx", DialectPostgres, false},
		{"mysql", DialectMySQL, false},
		{" mariadb ", DialectMySQL, false},
		{"mssql", DialectMSSQL, false},
		{"sqlserver", DialectMSSQL, false},
		{"oracle", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeDriver(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSQLiteDSN(t *testing.T) {
	tests := []struct {
		in       string
		prefix   string
		wantWAL  bool
		wantJoin string
	}{
		{"", ":memory:?", false, "?"},
		{":memory:", ":memory:?", false, "?"},
		{"data/scaley.db", "data/scaley.db?", true, "?"},
		{"file:scaley.db?cache=shared", "file:scaley.db?cache=shared&", true, "&"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := sqliteDSN(tt.in)
			if err != nil {
				t.Fatalf("sqliteDSN: %v", err)
			}
			if !strings.HasPrefix(got, tt.prefix) {
				t.Errorf("got %q, want prefix %q", got, tt.prefix)
			}
			if !strings.Contains(got, "_pragma=foreign_keys(1)") {
				t.Errorf("got %q, want foreign_keys pragma", got)
			}
			if strings.Contains(got, "journal_mode(WAL)") != tt.wantWAL {
				t.Errorf("got %q, WAL expected = %v", got, tt.wantWAL)
			}
		})
	}
}

func TestMySQLDSNForcesParseTime(t *testing.T) {
	got, err := mysqlDSN("scaley:secret@tcp(db:3306)/scaley")
	if err != nil {
		t.Fatalf("mysqlDSN: %v", err)
	}
	if !strings.Contains(got, "parseTime=true") {
		t.Errorf("got %q, want parseTime=true", got)
	}
	if !strings.Contains(got, "tcp(db:3306)/scaley") {
		t.Errorf("got %q, address lost", got)
	}

	if _, err := mysqlDSN("not a dsn"); err == nil {
		t.Error("expected error for malformed DSN")
	}
}

func TestPassthroughDSNRequiresValue(t *testing.T) {
	if _, err := passthroughDSN(""); err == nil {
		t.Error("expected error for empty DSN")
	}
	if got, _ := passthroughDSN("postgres://localhost/scaley"); got != "postgres://localhost/scaley" {
		t.Errorf("got %q", got)
	}
}

func TestInsertSQL(t *testing.T) {
	cols := []string{"name", "created_at"}
	tests := []struct {
		dialect string
		want    string
	}{
		{DialectSQLite, "INSERT INTO roles (name, created_at) VALUES (:name, :created_at)"},
		{DialectMySQL, "INSERT INTO roles (name, created_at) VALUES (:name, :created_at)"},
		{DialectPostgres, "INSERT INTO roles (name, created_at) VALUES (:name, :created_at) RETURNING id"},
		{DialectMSSQL, "INSERT INTO roles (name, created_at) OUTPUT INSERTED.id VALUES (:name, :created_at)"},
	}
	for _, tt := range tests {
		t.Run(tt.dialect, func(t *testing.T) {
			if got := dialects[tt.dialect].insertSQL("roles", cols); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPaginate(t *testing.T) {
	if got := dialects[DialectPostgres].paginate(10, 20); got != "LIMIT 10 OFFSET 20" {
		t.Errorf("postgres paginate = %q", got)
	}
	if got := dialects[DialectMSSQL].paginate(10, 20); got != "OFFSET 20 ROWS FETCH NEXT 10 ROWS ONLY" {
		t.Errorf("mssql paginate = %q", got)
	}
	if got := dialects[DialectMySQL].paginate(0, 20); got != "" {
		t.Errorf("unbounded paginate = %q, want empty", got)
	}
}

func TestPostgresCreateAdminUsesReturning(t *testing.T) {
	s, mock := newMockStore(t, DialectPostgres)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(
		"INSERT INTO admins (uuid, email, password_hash, name, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6) RETURNING id")).
		WithArgs(sqlmock.AnyArg(), "alice@example.com", "hash", "Alice", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM admin_roles WHERE admin_id = $1")).
		WithArgs(int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM roles WHERE name IN ($1)")).
		WithArgs("admin").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO admin_roles (admin_id, role_id, created_at) VALUES ($1, $2, $3)")).
		WithArgs(int64(42), int64(3), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE ar.admin_id IN ($1) ORDER BY r.name")).
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"admin_id", "name"}).AddRow(42, "admin"))
	mock.ExpectCommit()

	admin := &model.Admin{Email: "alice@example.com", Name: "Alice", PasswordHash: "hash"}
	if err := s.CreateAdmin(context.Background(), admin, []string{"admin"}); err != nil {
		t.Fatalf("CreateAdmin: %v", err)
	}
	if admin.ID != 42 {
		t.Errorf("ID = %d, want 42", admin.ID)
	}
	if len(admin.Roles) != 1 || admin.Roles[0] != "admin" {
		t.Errorf("Roles = %v, want [admin]", admin.Roles)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresDuplicateRoleIsConflict(t *testing.T) {
	s, mock := newMockStore(t, DialectPostgres)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO roles")).
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"})

	err := s.CreateRole(context.Background(), &model.Role{Name: "admin"})
	if !errors.Is(err, ErrConflict) {
		t.Errorf("err = %v, want ErrConflict", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestMySQLCreateRoleUsesLastInsertID(t *testing.T) {
	s, mock := newMockStore(t, DialectMySQL)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO roles (name, permissions_json, created_at, updated_at) VALUES (?, ?, ?, ?)")).
		WithArgs("auditor", `["activity:read"]`, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(7, 1))

	role := &model.Role{Name: "auditor", Permissions: []string{model.PermActivityRead}}
	if err := s.CreateRole(context.Background(), role); err != nil {
		t.Fatalf("CreateRole: %v", err)
	}
	if role.ID != 7 {
		t.Errorf("ID = %d, want 7", role.ID)
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO roles")).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'auditor'"})
	if err := s.CreateRole(context.Background(), &model.Role{Name: "auditor"}); !errors.Is(err, ErrConflict) {
		t.Errorf("err = %v, want ErrConflict", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestMSSQLListAdminsUsesOffsetFetch(t *testing.T) {
	s, mock := newMockStore(t, DialectMSSQL)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM admins a WHERE (LOWER(a.email) LIKE @p1 ESCAPE '!' OR LOWER(a.name) LIKE @p2 ESCAPE '!')")).
		WithArgs("%![ops]%", "%![ops]%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(21))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY a.[id] ASC OFFSET 20 ROWS FETCH NEXT 10 ROWS ONLY")).
		WithArgs("%![ops]%", "%![ops]%").
		WillReturnRows(sqlmock.NewRows([]string{"id", "uuid", "email", "password_hash", "name", "created_at", "updated_at"}).
			AddRow(21, "u-21", "ops21@example.com", "h", "[Ops] 21", now, now))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE ar.admin_id IN (@p1) ORDER BY r.name")).
		WithArgs(int64(21)).
		WillReturnRows(sqlmock.NewRows([]string{"admin_id", "name"}))

	admins, total, err := s.ListAdmins(context.Background(), AdminFilter{Search: "[Ops]", Limit: 10, Offset: 20})
	if err != nil {
		t.Fatalf("ListAdmins: %v", err)
	}
	if total != 21 || len(admins) != 1 {
		t.Fatalf("total=%d len=%d, want 21/1", total, len(admins))
	}
	if admins[0].Roles == nil || len(admins[0].Roles) != 0 {
		t.Errorf("Roles = %#v, want empty slice", admins[0].Roles)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"postgres unique", &pgconn.PgError{Code: "23505"}, true},
		{"postgres fk", &pgconn.PgError{Code: "23503"}, false},
		{"mysql duplicate", &mysql.MySQLError{Number: 1062}, true},
		{"mysql other", &mysql.MySQLError{Number: 1045}, false},
		{"mssql unique key", mssql.Error{Number: 2627}, true},
		{"mssql unique index", mssql.Error{Number: 2601}, true},
		{"wrapped postgres", fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"}), true},
		{"message fallback", errors.New("UNIQUE constraint failed: admins.email"), true},
		{"unrelated", errors.New("connection refused"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isUniqueViolation(tt.err); got != tt.want {
				t.Errorf("isUniqueViolation(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
