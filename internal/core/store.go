package core

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store owns the messages table. All reads and writes go through it.
type Store struct{ DB *pgxpool.Pool }

// Filters narrows a read query. Zero-valued fields impose no constraint.
type Filters struct {
	FromMSISDN string
	ToMSISDN   string
	StartTS    string
	EndTS      string
}

// buildFilters renders the WHERE clause shared by count, pagination and the
// aggregations. Placeholders start at $1; argIdx returns the next free index.
func buildFilters(f Filters) (whereSQL string, args []any, argIdx int) {
	idx := 1
	var clauses []string
	add := func(clause string, v any) {
		clauses = append(clauses, fmt.Sprintf(clause, idx))
		args = append(args, v)
		idx++
	}
	if f.FromMSISDN != "" {
		add("from_msisdn = $%d", f.FromMSISDN)
	}
	if f.ToMSISDN != "" {
		add("to_msisdn = $%d", f.ToMSISDN)
	}
	if f.StartTS != "" {
		add("ts >= $%d", f.StartTS)
	}
	if f.EndTS != "" {
		add("ts <= $%d", f.EndTS)
	}
	for i, c := range clauses {
		if i == 0 {
			whereSQL = " WHERE " + c
		} else {
			whereSQL += " AND " + c
		}
	}
	return whereSQL, args, idx
}

func utcNowISO() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// InsertMessage persists m with a store-assigned created_at. The uniqueness
// check and the write are a single statement, so concurrent inserts with the
// same message_id produce exactly one row and no constraint error.
// Returns true when a new row was created, false on duplicate.
func (s *Store) InsertMessage(ctx context.Context, m *Message) (bool, error) {
	m.CreatedAt = utcNowISO()
	tag, err := s.DB.Exec(ctx, `
		INSERT INTO messages(message_id, from_msisdn, to_msisdn, ts, text, created_at)
		VALUES($1,$2,$3,$4,$5,$6)
		ON CONFLICT (message_id) DO NOTHING
	`, m.MessageID, m.FromMSISDN, m.ToMSISDN, m.TS, m.Text, m.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("insert message: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) Exists(ctx context.Context, messageID string) (bool, error) {
	var found bool
	err := s.DB.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM messages WHERE message_id=$1)`, messageID).Scan(&found)
	return found, err
}

// CountMessages returns the number of rows matching all active filters.
func (s *Store) CountMessages(ctx context.Context, f Filters) (int, error) {
	where, args, _ := buildFilters(f)
	var n int
	err := s.DB.QueryRow(ctx, "SELECT COUNT(*) FROM messages"+where, args...).Scan(&n)
	return n, err
}

// QueryMessages returns one page of matching rows ordered by ts, plus the
// total matching count. The count runs first; under write concurrency the
// page may drift slightly from it.
func (s *Store) QueryMessages(ctx context.Context, f Filters, page, perPage int, order string) ([]Message, int, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}
	if perPage > 100 {
		perPage = 100
	}
	orderSQL := "DESC"
	if order == "asc" {
		orderSQL = "ASC"
	}

	total, err := s.CountMessages(ctx, f)
	if err != nil {
		return nil, 0, fmt.Errorf("count messages: %w", err)
	}

	where, args, idx := buildFilters(f)
	q := fmt.Sprintf(`
		SELECT message_id, from_msisdn, to_msisdn, ts, text, created_at
		FROM messages%s
		ORDER BY ts %s
		LIMIT $%d OFFSET $%d
	`, where, orderSQL, idx, idx+1)
	args = append(args, perPage, (page-1)*perPage)

	rows, err := s.DB.Query(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	items := make([]Message, 0, perPage)
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.MessageID, &m.FromMSISDN, &m.ToMSISDN, &m.TS, &m.Text, &m.CreatedAt); err != nil {
			return nil, 0, err
		}
		items = append(items, m)
	}
	return items, total, rows.Err()
}

// MessagesByDay groups matching rows by the YYYY-MM-DD prefix of ts,
// ascending by date. Days with no rows are omitted. A days value > 0
// overrides StartTS/EndTS with the window [now-(days-1), now] in UTC.
func (s *Store) MessagesByDay(ctx context.Context, f Filters, days int) ([]DayCount, error) {
	if days > 0 {
		end := time.Now().UTC()
		start := end.AddDate(0, 0, -(days - 1))
		f.StartTS = start.Format(time.RFC3339Nano)
		f.EndTS = end.Format(time.RFC3339Nano)
	}
	where, args, _ := buildFilters(f)
	q := `
		SELECT substr(ts, 1, 10) AS day, COUNT(*) AS cnt
		FROM messages` + where + `
		GROUP BY day
		ORDER BY day ASC
	`
	rows, err := s.DB.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("messages by day: %w", err)
	}
	defer rows.Close()

	var out []DayCount
	for rows.Next() {
		var d DayCount
		if err := rows.Scan(&d.Date, &d.Count); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// TopSenders groups matching rows by from_msisdn, descending by count,
// truncated to limit. Order among equal counts is store-dependent.
func (s *Store) TopSenders(ctx context.Context, f Filters, limit int) ([]SenderCount, error) {
	if limit < 1 {
		limit = 10
	}
	where, args, idx := buildFilters(f)
	q := fmt.Sprintf(`
		SELECT from_msisdn, COUNT(*) AS cnt
		FROM messages%s
		GROUP BY from_msisdn
		ORDER BY cnt DESC
		LIMIT $%d
	`, where, idx)
	args = append(args, limit)

	rows, err := s.DB.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("top senders: %w", err)
	}
	defer rows.Close()

	var out []SenderCount
	for rows.Next() {
		var sc SenderCount
		if err := rows.Scan(&sc.FromMSISDN, &sc.Count); err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

// IsReady reports whether the messages table is present and reachable.
func (s *Store) IsReady(ctx context.Context) bool {
	var reg *string
	if err := s.DB.QueryRow(ctx, `SELECT to_regclass('public.messages')::text`).Scan(&reg); err != nil {
		return false
	}
	return reg != nil
}
