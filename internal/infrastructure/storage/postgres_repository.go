package storage

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"

	"exportsweep/internal/domain"
	"exportsweep/internal/ports"
)

// PostgresRepository persists finished-run summaries into Postgres.
type PostgresRepository struct {
	db      *sql.DB
	builder sq.StatementBuilderType
}

var _ ports.RunRepository = (*PostgresRepository)(nil)

// Open connects to Postgres and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// NewPostgresRepository wires a sql.DB implementation.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// SaveRun inserts one finished-run record. A repeated run ID updates the
// stored summary instead of duplicating it.
func (r *PostgresRepository) SaveRun(ctx context.Context, record domain.RunRecord) error {
	if r.db == nil {
		return nil
	}

	query, args, err := r.builder.
		Insert("export_runs").
		Columns("run_id", "target_id", "state", "files_processed", "files_errored", "files_skipped",
			"started_at", "ended_at", "created_at").
		Values(record.RunID, record.TargetID, string(record.State),
			record.Stats.FilesProcessed, record.Stats.FilesErrored, record.Stats.FilesSkipped,
			record.Stats.StartTime, record.Stats.EndTime, record.CreatedAt).
		Suffix(`ON CONFLICT (run_id) DO UPDATE
            SET state = EXCLUDED.state,
                files_processed = EXCLUDED.files_processed,
                files_errored = EXCLUDED.files_errored,
                files_skipped = EXCLUDED.files_skipped,
                ended_at = EXCLUDED.ended_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert run: %w", err)
	}

	return nil
}

// RecentRuns returns the latest finished runs, newest first.
func (r *PostgresRepository) RecentRuns(ctx context.Context, limit int) ([]domain.RunRecord, error) {
	if r.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	query, args, err := r.builder.
		Select("run_id", "target_id", "state", "files_processed", "files_errored", "files_skipped",
			"started_at", "ended_at", "created_at").
		From("export_runs").
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var records []domain.RunRecord
	for rows.Next() {
		var rec domain.RunRecord
		var state string
		var endedAt sql.NullTime
		if err := rows.Scan(&rec.RunID, &rec.TargetID, &state,
			&rec.Stats.FilesProcessed, &rec.Stats.FilesErrored, &rec.Stats.FilesSkipped,
			&rec.Stats.StartTime, &endedAt, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		rec.State = domain.RunState(state)
		if endedAt.Valid {
			rec.Stats.EndTime = endedAt.Time
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return records, nil
}
