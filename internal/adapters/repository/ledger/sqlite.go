package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/okian/topple/internal/domain/model"
	"github.com/okian/topple/pkg/metrics"

	_ "modernc.org/sqlite"
)

// clientTimeFormat stores the client-reported timestamp; the server
// timestamp is kept as unix nanoseconds so range scans and the
// most-recent-first index order correctly.
const clientTimeFormat = time.RFC3339Nano

// schema creates the scores table. The (player_tag, server_ts_ns DESC)
// index serves per-player most-recent-first scans; the server_ts_ns index
// serves range queries and pruning.
const schema = `
CREATE TABLE IF NOT EXISTS scores (
	submission_id     TEXT PRIMARY KEY,
	player_tag        TEXT NOT NULL,
	survival_time     REAL NOT NULL,
	session_signature TEXT NOT NULL,
	client_ts         TEXT NOT NULL,
	server_ts_ns      INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_scores_player_recent ON scores (player_tag, server_ts_ns DESC);
CREATE INDEX IF NOT EXISTS idx_scores_server_ts ON scores (server_ts_ns);
`

// SQLiteLedger implements Ledger on a local SQLite database.
type SQLiteLedger struct {
	db *sql.DB
}

// Open opens (and migrates) a SQLite-backed ledger at path.
func Open(path string) (*SQLiteLedger, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%w: ledger path is required", ErrStorage)
	}

	// modernc.org/sqlite applies pragmas via _pragma=name(value); the
	// mattn-style _journal_mode=... keys are silently ignored by this driver.
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open: %w", ErrStorage, err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: ping: %w", ErrStorage, err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: migrate: %w", ErrStorage, err)
	}

	return &SQLiteLedger{db: db}, nil
}

// Close closes the underlying database.
func (l *SQLiteLedger) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

// Append implements Ledger.Append.
func (l *SQLiteLedger) Append(ctx context.Context, rec model.ScoreRecord) error {
	start := time.Now()
	defer func() {
		metrics.RecordLedgerAppendLatency(float64(time.Since(start).Milliseconds()))
	}()

	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := l.db.ExecContext(ctx, `
		INSERT INTO scores (submission_id, player_tag, survival_time, session_signature, client_ts, server_ts_ns)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.SubmissionID,
		rec.PlayerTag,
		rec.SurvivalTime,
		rec.SessionSignature,
		rec.ClientTimestamp.UTC().Format(clientTimeFormat),
		rec.ServerTimestamp.UTC().UnixNano(),
	)
	if err != nil {
		metrics.RecordErrorByComponent("ledger", "append_failed")
		return fmt.Errorf("%w: append: %w", ErrStorage, err)
	}
	return nil
}

// BestFor implements Ledger.BestFor. On equal survival times the earliest
// record wins, matching the leaderboard tie-break.
func (l *SQLiteLedger) BestFor(ctx context.Context, playerTag string) (model.ScoreRecord, error) {
	start := time.Now()
	defer func() {
		metrics.RecordLedgerQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	if err := ctx.Err(); err != nil {
		return model.ScoreRecord{}, err
	}

	row := l.db.QueryRowContext(ctx, `
		SELECT submission_id, player_tag, survival_time, session_signature, client_ts, server_ts_ns
		FROM scores
		WHERE player_tag = ?
		ORDER BY survival_time DESC, server_ts_ns ASC
		LIMIT 1`, playerTag)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ScoreRecord{}, fmt.Errorf("%w: %s", ErrNoScores, playerTag)
	}
	if err != nil {
		return model.ScoreRecord{}, fmt.Errorf("%w: best for %s: %w", ErrStorage, playerTag, err)
	}
	return rec, nil
}

// InRange implements Ledger.InRange.
func (l *SQLiteLedger) InRange(ctx context.Context, from, to time.Time) ([]model.ScoreRecord, error) {
	start := time.Now()
	defer func() {
		metrics.RecordLedgerQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows, err := l.db.QueryContext(ctx, `
		SELECT submission_id, player_tag, survival_time, session_signature, client_ts, server_ts_ns
		FROM scores
		WHERE server_ts_ns BETWEEN ? AND ?
		ORDER BY server_ts_ns ASC`,
		from.UTC().UnixNano(), to.UTC().UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: range query: %w", ErrStorage, err)
	}
	defer rows.Close()

	return collectRecords(rows)
}

// SubmissionCount implements Ledger.SubmissionCount.
func (l *SQLiteLedger) SubmissionCount(ctx context.Context, playerTag string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var count int
	err := l.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM scores WHERE player_tag = ?`, playerTag).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("%w: submission count: %w", ErrStorage, err)
	}
	return count, nil
}

// BestPerPlayer implements Ledger.BestPerPlayer. A player's best is the
// record no other record of theirs beats on (survival time DESC,
// server timestamp ASC, submission id ASC).
func (l *SQLiteLedger) BestPerPlayer(ctx context.Context) ([]model.ScoreRecord, error) {
	start := time.Now()
	defer func() {
		metrics.RecordLedgerQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows, err := l.db.QueryContext(ctx, `
		SELECT s.submission_id, s.player_tag, s.survival_time, s.session_signature, s.client_ts, s.server_ts_ns
		FROM scores s
		WHERE NOT EXISTS (
			SELECT 1 FROM scores o
			WHERE o.player_tag = s.player_tag
			  AND (o.survival_time > s.survival_time
				OR (o.survival_time = s.survival_time AND o.server_ts_ns < s.server_ts_ns)
				OR (o.survival_time = s.survival_time AND o.server_ts_ns = s.server_ts_ns AND o.submission_id < s.submission_id))
		)
		ORDER BY s.survival_time DESC, s.server_ts_ns ASC`)
	if err != nil {
		return nil, fmt.Errorf("%w: best per player: %w", ErrStorage, err)
	}
	defer rows.Close()

	return collectRecords(rows)
}

// Prune implements Ledger.Prune.
func (l *SQLiteLedger) Prune(ctx context.Context, olderThan time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	res, err := l.db.ExecContext(ctx,
		`DELETE FROM scores WHERE server_ts_ns < ?`, olderThan.UTC().UnixNano())
	if err != nil {
		return 0, fmt.Errorf("%w: prune: %w", ErrStorage, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: prune count: %w", ErrStorage, err)
	}

	if affected > 0 {
		metrics.RecordLedgerPruned(int(affected))
	}
	return int(affected), nil
}

// Count implements Ledger.Count.
func (l *SQLiteLedger) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var count int
	if err := l.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM scores`).Scan(&count); err != nil {
		return 0, fmt.Errorf("%w: count: %w", ErrStorage, err)
	}
	metrics.UpdateLedgerRecords(count)
	return count, nil
}

// scanner abstracts *sql.Row and *sql.Rows for scanRecord.
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (model.ScoreRecord, error) {
	var (
		rec      model.ScoreRecord
		clientTS string
		serverNS int64
	)
	if err := s.Scan(&rec.SubmissionID, &rec.PlayerTag, &rec.SurvivalTime,
		&rec.SessionSignature, &clientTS, &serverNS); err != nil {
		return model.ScoreRecord{}, err
	}

	parsed, err := time.Parse(clientTimeFormat, clientTS)
	if err != nil {
		return model.ScoreRecord{}, fmt.Errorf("parse client timestamp: %w", err)
	}
	rec.ClientTimestamp = parsed
	rec.ServerTimestamp = time.Unix(0, serverNS).UTC()
	return rec, nil
}

func collectRecords(rows *sql.Rows) ([]model.ScoreRecord, error) {
	var out []model.ScoreRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan: %w", ErrStorage, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate: %w", ErrStorage, err)
	}
	return out, nil
}

var _ Ledger = (*SQLiteLedger)(nil)
