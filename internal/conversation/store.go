package conversation

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	_ "modernc.org/sqlite"
)

var tracer = otel.Tracer("insightd.conversation")

//go:embed migrations/*.sql
var migrationsFS embed.FS

// timeLayout is RFC 3339 with a fixed-width nanosecond fraction so that
// lexicographic comparison of stored strings matches chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store is the durable conversation log. A single instance is shared
// process-wide; the single-connection pool serializes concurrent writers.
type Store struct {
	db     *sql.DB
	logger *zap.Logger

	mu     sync.Mutex
	closed bool
}

// Open opens (or creates) the SQLite database at path and applies pending
// migrations. Pass ":memory:" for an in-memory database (used by tests).
func Open(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("%w: creating data directory: %v", ErrStorage, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening database: %v", ErrStorage, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: pinging database: %v", ErrStorage, err)
	}

	// Limit to a single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	// Busy timeout so concurrent access waits briefly instead of failing.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: setting busy timeout: %v", ErrStorage, err)
	}

	// WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: setting journal mode: %v", ErrStorage, err)
	}

	s := &Store{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: running migrations: %v", ErrStorage, err)
	}

	logger.Info("conversation store ready", zap.String("path", path))
	return s, nil
}

// Close closes the underlying database connection. Safe to call twice.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.logger.Debug("closing conversation store")
	return s.db.Close()
}

func (s *Store) checkOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// migrate applies embedded SQL migrations that have not run yet, tracked in
// a schema_version table. Idempotent; safe to invoke on every Open.
func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}

		s.logger.Debug("applied migration", zap.Int("version", version))
	}

	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// AppliedMigrations returns applied migration versions in ascending order.
func (s *Store) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStorage, err)
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// AppendRecord durably writes one conversational turn and returns the
// assigned id. Ids are strictly increasing; concurrent appends never lose
// records or duplicate ids.
func (s *Store) AppendRecord(ctx context.Context, in RecordInput) (int64, error) {
	ctx, span := tracer.Start(ctx, "Store.AppendRecord")
	defer span.End()

	span.SetAttributes(
		attribute.String("session_id", in.SessionID),
		attribute.Bool("success", in.Success),
	)

	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	if in.SessionID == "" {
		span.SetStatus(codes.Error, "empty session id")
		return 0, ErrEmptySession
	}

	metadata, err := marshalMetadata(in.Metadata)
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("%w: encoding metadata: %v", ErrStorage, err)
	}

	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (session_id, room_name, timestamp, user_message, agent_response, response_time_ms, success, error_message, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		in.SessionID, nullString(in.RoomName), now.Format(timeLayout),
		in.UserMessage, in.AgentResponse, in.ResponseTimeMS,
		in.Success, nullString(in.ErrorMessage), metadata,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("%w: inserting record: %v", ErrStorage, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("%w: reading record id: %v", ErrStorage, err)
	}

	span.SetAttributes(attribute.Int64("record_id", id))
	span.SetStatus(codes.Ok, "success")
	return id, nil
}

// AppendMetric writes one point metric sample. Fire-and-forget from the
// caller's perspective; the only signal back is the error.
func (s *Store) AppendMetric(ctx context.Context, sessionID, name string, value float64, metadata map[string]string) error {
	ctx, span := tracer.Start(ctx, "Store.AppendMetric")
	defer span.End()

	span.SetAttributes(
		attribute.String("session_id", sessionID),
		attribute.String("metric_name", name),
	)

	if err := s.checkOpen(); err != nil {
		return err
	}
	if sessionID == "" {
		return ErrEmptySession
	}

	meta, err := marshalMetadata(metadata)
	if err != nil {
		return fmt.Errorf("%w: encoding metadata: %v", ErrStorage, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO performance_metrics (session_id, timestamp, metric_name, metric_value, metadata)
		VALUES (?, ?, ?, ?, ?)`,
		sessionID, time.Now().UTC().Format(timeLayout), name, value, meta,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("%w: inserting metric: %v", ErrStorage, err)
	}

	span.SetStatus(codes.Ok, "success")
	return nil
}

// AppendFeedback writes one feedback entry referencing recordID. The
// reference is best-effort; no existence check is made at write time.
func (s *Store) AppendFeedback(ctx context.Context, recordID int64, kind, value string) error {
	ctx, span := tracer.Start(ctx, "Store.AppendFeedback")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("record_id", recordID),
		attribute.String("feedback_type", kind),
	)

	if err := s.checkOpen(); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO feedback (conversation_id, timestamp, feedback_type, feedback_value)
		VALUES (?, ?, ?, ?)`,
		recordID, time.Now().UTC().Format(timeLayout), kind, value,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("%w: inserting feedback: %v", ErrStorage, err)
	}

	span.SetStatus(codes.Ok, "success")
	return nil
}

// RecentRecords returns up to limit records ordered newest first. When
// sessionID is non-empty the result is restricted to that session. Fewer
// records than limit is not an error.
func (s *Store) RecentRecords(ctx context.Context, limit int, sessionID string) ([]Record, error) {
	ctx, span := tracer.Start(ctx, "Store.RecentRecords")
	defer span.End()

	span.SetAttributes(attribute.Int("limit", limit))

	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, session_id, room_name, timestamp, user_message, agent_response, response_time_ms, success, error_message, metadata
		FROM conversations`
	args := []interface{}{}
	if sessionID != "" {
		query += " WHERE session_id = ?"
		args = append(args, sessionID)
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%w: querying records: %v", ErrStorage, err)
	}
	defer rows.Close()

	var results []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		results = append(results, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading records: %v", ErrStorage, err)
	}

	span.SetAttributes(attribute.Int("result_count", len(results)))
	span.SetStatus(codes.Ok, "success")
	return results, nil
}

// Stats aggregates records written in the last sinceDays days (all time when
// sinceDays <= 0), optionally restricted to one session. Reading twice
// without intervening writes yields identical results.
func (s *Store) Stats(ctx context.Context, sessionID string, sinceDays int) (*Stats, error) {
	ctx, span := tracer.Start(ctx, "Store.Stats")
	defer span.End()

	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	query := `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN success = 1 THEN 1 ELSE 0 END), 0),
		       COALESCE(AVG(response_time_ms), 0),
		       COUNT(DISTINCT session_id),
		       COALESCE(MIN(timestamp), ''),
		       COALESCE(MAX(timestamp), '')
		FROM conversations WHERE 1=1`
	args := []interface{}{}
	if sessionID != "" {
		query += " AND session_id = ?"
		args = append(args, sessionID)
	}
	if sinceDays > 0 {
		cutoff := time.Now().UTC().AddDate(0, 0, -sinceDays)
		query += " AND timestamp >= ?"
		args = append(args, cutoff.Format(timeLayout))
	}

	var (
		st          Stats
		avg         float64
		first, last string
	)
	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&st.TotalConversations, &st.SuccessCount, &avg, &st.Sessions, &first, &last,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%w: aggregating stats: %v", ErrStorage, err)
	}

	st.FailureCount = st.TotalConversations - st.SuccessCount
	st.AvgResponseTimeMS = round2(avg)
	if st.TotalConversations > 0 {
		st.SuccessRatePct = round2(float64(st.SuccessCount) / float64(st.TotalConversations) * 100)
	}
	if first != "" {
		if st.FirstTimestamp, err = time.Parse(timeLayout, first); err != nil {
			return nil, fmt.Errorf("%w: parsing first timestamp: %v", ErrStorage, err)
		}
	}
	if last != "" {
		if st.LastTimestamp, err = time.Parse(timeLayout, last); err != nil {
			return nil, fmt.Errorf("%w: parsing last timestamp: %v", ErrStorage, err)
		}
	}

	span.SetAttributes(attribute.Int("total", st.TotalConversations))
	span.SetStatus(codes.Ok, "success")
	return &st, nil
}

// ErrorHistogram groups failed records by exact error message, ordered by
// count descending then recency descending, truncated to limit.
func (s *Store) ErrorHistogram(ctx context.Context, limit int) ([]ErrorPattern, error) {
	ctx, span := tracer.Start(ctx, "Store.ErrorHistogram")
	defer span.End()

	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT error_message, COUNT(*) AS cnt, MAX(timestamp) AS last_seen
		FROM conversations
		WHERE success = 0 AND error_message IS NOT NULL AND error_message != ''
		GROUP BY error_message
		ORDER BY cnt DESC, last_seen DESC
		LIMIT ?`, limit,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%w: querying error histogram: %v", ErrStorage, err)
	}
	defer rows.Close()

	var results []ErrorPattern
	for rows.Next() {
		var (
			p        ErrorPattern
			lastSeen string
		)
		if err := rows.Scan(&p.ErrorMessage, &p.Count, &lastSeen); err != nil {
			return nil, fmt.Errorf("%w: scanning error pattern: %v", ErrStorage, err)
		}
		if p.LastSeen, err = time.Parse(timeLayout, lastSeen); err != nil {
			return nil, fmt.Errorf("%w: parsing last_seen: %v", ErrStorage, err)
		}
		results = append(results, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading error histogram: %v", ErrStorage, err)
	}

	span.SetAttributes(attribute.Int("unique_errors", len(results)))
	span.SetStatus(codes.Ok, "success")
	return results, nil
}

// scanRecord reads one conversations row.
func scanRecord(rows *sql.Rows) (Record, error) {
	var (
		rec          Record
		room, errMsg sql.NullString
		respTime     sql.NullFloat64
		metadata     sql.NullString
		ts           string
	)
	if err := rows.Scan(
		&rec.ID, &rec.SessionID, &room, &ts, &rec.UserMessage, &rec.AgentResponse,
		&respTime, &rec.Success, &errMsg, &metadata,
	); err != nil {
		return Record{}, fmt.Errorf("%w: scanning record: %v", ErrStorage, err)
	}

	t, err := time.Parse(timeLayout, ts)
	if err != nil {
		return Record{}, fmt.Errorf("%w: parsing timestamp: %v", ErrStorage, err)
	}
	rec.Timestamp = t
	rec.RoomName = room.String
	rec.ErrorMessage = errMsg.String
	rec.ResponseTimeMS = respTime.Float64

	if metadata.Valid && metadata.String != "" {
		m, err := unmarshalMetadata(metadata.String)
		if err != nil {
			return Record{}, fmt.Errorf("%w: decoding metadata: %v", ErrStorage, err)
		}
		rec.Metadata = m
	}

	return rec, nil
}

func marshalMetadata(m map[string]string) (sql.NullString, error) {
	if len(m) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func unmarshalMetadata(s string) (map[string]string, error) {
	var m map[string]string
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, err
	}
	return m, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
