package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/getscaley/scaley/internal/model"
)

const activityColumns = "id, admin_id, action, method, path, ip, user_agent, metadata_json, created_at"

var activityInsertColumns = []string{"admin_id", "action", "method", "path", "ip", "user_agent", "metadata_json", "created_at"}

// activityRow maps 1:1 to the activity_logs table.
type activityRow struct {
	ID           int64         `db:"id"`
	AdminID      sql.NullInt64 `db:"admin_id"`
	Action       string        `db:"action"`
	Method       string        `db:"method"`
	Path         string        `db:"path"`
	IP           string        `db:"ip"`
	UserAgent    string        `db:"user_agent"`
	MetadataJSON string        `db:"metadata_json"`
	CreatedAt    time.Time     `db:"created_at"`
}

func (r activityRow) toModel() (model.ActivityLog, error) {
	entry := model.ActivityLog{
		ID:        r.ID,
		Action:    r.Action,
		Method:    r.Method,
		Path:      r.Path,
		IP:        r.IP,
		UserAgent: r.UserAgent,
		CreatedAt: r.CreatedAt,
	}
	if r.AdminID.Valid {
		id := r.AdminID.Int64
		entry.AdminID = &id
	}
	if r.MetadataJSON != "" {
		if err := json.Unmarshal([]byte(r.MetadataJSON), &entry.Metadata); err != nil {
			return model.ActivityLog{}, fmt.Errorf("unmarshal activity metadata: %w", err)
		}
	}
	return entry, nil
}

// ActivityFilter narrows ListActivityLogs. A nil AdminID lists every entry.
type ActivityFilter struct {
	AdminID *int64
	Limit   int
	Offset  int
}

// CreateActivityLog appends one audit entry. The ID and, when zero,
// CreatedAt are populated on success.
func (s *Store) CreateActivityLog(ctx context.Context, entry *model.ActivityLog) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	meta, err := json.Marshal(entry.Metadata)
	if err != nil {
		return fmt.Errorf("marshal activity metadata: %w", err)
	}

	row := activityRow{
		Action:       entry.Action,
		Method:       entry.Method,
		Path:         entry.Path,
		IP:           entry.IP,
		UserAgent:    entry.UserAgent,
		MetadataJSON: string(meta),
		CreatedAt:    entry.CreatedAt,
	}
	if entry.AdminID != nil {
		row.AdminID = sql.NullInt64{Int64: *entry.AdminID, Valid: true}
	}

	id, err := s.insert(ctx, s.db, "activity_logs", activityInsertColumns, row)
	if err != nil {
		return fmt.Errorf("insert activity log: %w", err)
	}
	entry.ID = id
	return nil
}

// ListActivityLogs returns one page of entries, newest first, and the total
// number of matching entries.
func (s *Store) ListActivityLogs(ctx context.Context, f ActivityFilter) ([]model.ActivityLog, int, error) {
	where := ""
	var args []interface{}
	if f.AdminID != nil {
		where = " WHERE admin_id = ?"
		args = append(args, *f.AdminID)
	}

	var total int
	if err := s.db.GetContext(ctx, &total, s.db.Rebind("SELECT COUNT(*) FROM activity_logs"+where), args...); err != nil {
		return nil, 0, fmt.Errorf("count activity logs: %w", err)
	}

	q := "SELECT " + activityColumns + " FROM activity_logs" + where + " ORDER BY created_at DESC, id DESC"
	if page := s.dialect.paginate(f.Limit, f.Offset); page != "" {
		q += " " + page
	}

	var rows []activityRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(q), args...); err != nil {
		return nil, 0, fmt.Errorf("list activity logs: %w", err)
	}

	entries := make([]model.ActivityLog, 0, len(rows))
	for _, r := range rows {
		e, err := r.toModel()
		if err != nil {
			return nil, 0, err
		}
		entries = append(entries, e)
	}
	return entries, total, nil
}

// PruneActivityLogs deletes entries created before cutoff and returns how
// many were removed.
func (s *Store) PruneActivityLogs(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, s.db.Rebind("DELETE FROM activity_logs WHERE created_at < ?"), cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("prune activity logs: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune activity logs rows affected: %w", err)
	}
	return n, nil
}
