package store

import (
	"context"
	"fmt"
	"strings"
)

var sqliteMigrations = []string{
	`CREATE TABLE IF NOT EXISTS admins (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		uuid TEXT UNIQUE NOT NULL,
		email TEXT UNIQUE NOT NULL,
		password_hash TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE TABLE IF NOT EXISTS roles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT UNIQUE NOT NULL,
		permissions_json TEXT NOT NULL DEFAULT '[]',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE TABLE IF NOT EXISTS admin_roles (
		admin_id INTEGER NOT NULL REFERENCES admins(id) ON DELETE CASCADE,
		role_id INTEGER NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (admin_id, role_id)
	)`,

	`CREATE TABLE IF NOT EXISTS activity_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		admin_id INTEGER REFERENCES admins(id) ON DELETE SET NULL,
		action TEXT NOT NULL,
		method TEXT NOT NULL,
		path TEXT NOT NULL,
		ip TEXT NOT NULL DEFAULT '',
		user_agent TEXT NOT NULL DEFAULT '',
		metadata_json TEXT NOT NULL DEFAULT '{}',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE INDEX IF NOT EXISTS idx_admin_roles_role_id ON admin_roles(role_id)`,
	`CREATE INDEX IF NOT EXISTS idx_activity_logs_admin_id ON activity_logs(admin_id)`,
	`CREATE INDEX IF NOT EXISTS idx_activity_logs_created_at ON activity_logs(created_at)`,
}

var postgresMigrations = []string{
	`CREATE TABLE IF NOT EXISTS admins (
		id BIGSERIAL PRIMARY KEY,
		uuid VARCHAR(36) UNIQUE NOT NULL,
		email VARCHAR(255) UNIQUE NOT NULL,
		password_hash VARCHAR(255) NOT NULL,
		name VARCHAR(255) NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS roles (
		id BIGSERIAL PRIMARY KEY,
		name VARCHAR(100) UNIQUE NOT NULL,
		permissions_json TEXT NOT NULL DEFAULT '[]',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS admin_roles (
		admin_id BIGINT NOT NULL REFERENCES admins(id) ON DELETE CASCADE,
		role_id BIGINT NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (admin_id, role_id)
	)`,

	`CREATE TABLE IF NOT EXISTS activity_logs (
		id BIGSERIAL PRIMARY KEY,
		admin_id BIGINT REFERENCES admins(id) ON DELETE SET NULL,
		action TEXT NOT NULL,
		method VARCHAR(16) NOT NULL,
		path TEXT NOT NULL,
		ip VARCHAR(64) NOT NULL DEFAULT '',
		user_agent TEXT NOT NULL DEFAULT '',
		metadata_json TEXT NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE INDEX IF NOT EXISTS idx_admin_roles_role_id ON admin_roles(role_id)`,
	`CREATE INDEX IF NOT EXISTS idx_activity_logs_admin_id ON activity_logs(admin_id)`,
	`CREATE INDEX IF NOT EXISTS idx_activity_logs_created_at ON activity_logs(created_at)`,
}

// MySQL has no CREATE INDEX IF NOT EXISTS, so indexes are declared inline.
// TEXT columns cannot carry defaults on older servers; the store always
// supplies them.
var mysqlMigrations = []string{
	`CREATE TABLE IF NOT EXISTS admins (
		id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
		uuid VARCHAR(36) NOT NULL UNIQUE,
		email VARCHAR(255) NOT NULL UNIQUE,
		password_hash VARCHAR(255) NOT NULL,
		name VARCHAR(255) NOT NULL DEFAULT '',
		created_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
		updated_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS roles (
		id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(100) NOT NULL UNIQUE,
		permissions_json TEXT NOT NULL,
		created_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
		updated_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS admin_roles (
		admin_id BIGINT NOT NULL,
		role_id BIGINT NOT NULL,
		created_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
		PRIMARY KEY (admin_id, role_id),
		INDEX idx_admin_roles_role_id (role_id),
		CONSTRAINT fk_admin_roles_admin FOREIGN KEY (admin_id) REFERENCES admins(id) ON DELETE CASCADE,
		CONSTRAINT fk_admin_roles_role FOREIGN KEY (role_id) REFERENCES roles(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS activity_logs (
		id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
		admin_id BIGINT NULL,
		action TEXT NOT NULL,
		method VARCHAR(16) NOT NULL,
		path TEXT NOT NULL,
		ip VARCHAR(64) NOT NULL DEFAULT '',
		user_agent TEXT NOT NULL,
		metadata_json TEXT NOT NULL,
		created_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
		INDEX idx_activity_logs_admin_id (admin_id),
		INDEX idx_activity_logs_created_at (created_at),
		CONSTRAINT fk_activity_logs_admin FOREIGN KEY (admin_id) REFERENCES admins(id) ON DELETE SET NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// SQL Server has no CREATE TABLE IF NOT EXISTS; each statement guards itself.
var mssqlMigrations = []string{
	`IF OBJECT_ID(N'admins', N'U') IS NULL
	CREATE TABLE admins (
		id BIGINT IDENTITY(1,1) PRIMARY KEY,
		uuid NVARCHAR(36) NOT NULL UNIQUE,
		email NVARCHAR(255) NOT NULL UNIQUE,
		password_hash NVARCHAR(255) NOT NULL,
		name NVARCHAR(255) NOT NULL DEFAULT '',
		created_at DATETIME2 NOT NULL DEFAULT SYSUTCDATETIME(),
		updated_at DATETIME2 NOT NULL DEFAULT SYSUTCDATETIME()
	)`,

	`IF OBJECT_ID(N'roles', N'U') IS NULL
	CREATE TABLE roles (
		id BIGINT IDENTITY(1,1) PRIMARY KEY,
		name NVARCHAR(100) NOT NULL UNIQUE,
		permissions_json NVARCHAR(MAX) NOT NULL DEFAULT '[]',
		created_at DATETIME2 NOT NULL DEFAULT SYSUTCDATETIME(),
		updated_at DATETIME2 NOT NULL DEFAULT SYSUTCDATETIME()
	)`,

	`IF OBJECT_ID(N'admin_roles', N'U') IS NULL
	CREATE TABLE admin_roles (
		admin_id BIGINT NOT NULL REFERENCES admins(id) ON DELETE CASCADE,
		role_id BIGINT NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
		created_at DATETIME2 NOT NULL DEFAULT SYSUTCDATETIME(),
		PRIMARY KEY (admin_id, role_id)
	)`,

	`IF OBJECT_ID(N'activity_logs', N'U') IS NULL
	CREATE TABLE activity_logs (
		id BIGINT IDENTITY(1,1) PRIMARY KEY,
		admin_id BIGINT NULL REFERENCES admins(id) ON DELETE SET NULL,
		action NVARCHAR(MAX) NOT NULL,
		method NVARCHAR(16) NOT NULL,
		path NVARCHAR(MAX) NOT NULL,
		ip NVARCHAR(64) NOT NULL DEFAULT '',
		user_agent NVARCHAR(MAX) NOT NULL DEFAULT '',
		metadata_json NVARCHAR(MAX) NOT NULL DEFAULT '{}',
		created_at DATETIME2 NOT NULL DEFAULT SYSUTCDATETIME()
	)`,

	`IF NOT EXISTS (SELECT 1 FROM sys.indexes WHERE name = N'idx_admin_roles_role_id')
	CREATE INDEX idx_admin_roles_role_id ON admin_roles(role_id)`,
	`IF NOT EXISTS (SELECT 1 FROM sys.indexes WHERE name = N'idx_activity_logs_admin_id')
	CREATE INDEX idx_activity_logs_admin_id ON activity_logs(admin_id)`,
	`IF NOT EXISTS (SELECT 1 FROM sys.indexes WHERE name = N'idx_activity_logs_created_at')
	CREATE INDEX idx_activity_logs_created_at ON activity_logs(created_at)`,
}

func (s *Store) migrate(ctx context.Context) error {
	for _, m := range s.dialect.migrations {
		if _, err := s.db.ExecContext(ctx, m); err != nil {
			// Older schemas may already carry a column or index added later;
			// treat those as applied.
			lower := strings.ToLower(err.Error())
			if strings.Contains(lower, "duplicate column") || strings.Contains(lower, "already exists") {
				continue
			}
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}
