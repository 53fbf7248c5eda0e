package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/docflow-ai/internal/core/domain"
)

const schemaLockKey int64 = 2026101801

type AnalysisJournal struct {
	db *sql.DB
}

func NewAnalysisJournal(db *sql.DB) *AnalysisJournal {
	return &AnalysisJournal{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (j *AnalysisJournal) EnsureSchema(ctx context.Context) error {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockKey); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS analysis_journal (
	request_id TEXT PRIMARY KEY,
	operation TEXT NOT NULL,
	document_id BIGINT,
	version_id BIGINT,
	file_url TEXT,
	checksum TEXT,
	provider TEXT,
	status TEXT NOT NULL,
	stage TEXT NOT NULL,
	error_code TEXT,
	error_text TEXT,
	elapsed_ms BIGINT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_analysis_journal_document ON analysis_journal(document_id, version_id);
CREATE INDEX IF NOT EXISTS idx_analysis_journal_created_at ON analysis_journal(created_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// Record upserts entry. A redelivered task reuses its request id, so the last
// run wins.
func (j *AnalysisJournal) Record(ctx context.Context, entry domain.JournalEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := j.db.ExecContext(ctx, `
INSERT INTO analysis_journal (request_id, operation, document_id, version_id, file_url, checksum, provider, status, stage, error_code, error_text, elapsed_ms, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
ON CONFLICT (request_id) DO UPDATE SET
	operation = EXCLUDED.operation,
	document_id = EXCLUDED.document_id,
	version_id = EXCLUDED.version_id,
	file_url = EXCLUDED.file_url,
	checksum = EXCLUDED.checksum,
	provider = EXCLUDED.provider,
	status = EXCLUDED.status,
	stage = EXCLUDED.stage,
	error_code = EXCLUDED.error_code,
	error_text = EXCLUDED.error_text,
	elapsed_ms = EXCLUDED.elapsed_ms,
	created_at = EXCLUDED.created_at
`,
		entry.RequestID,
		entry.Operation,
		nullableInt64(entry.DocumentID),
		nullableInt64(entry.VersionID),
		nullableString(entry.URL),
		nullableString(entry.Checksum),
		nullableString(entry.Provider),
		string(entry.Status),
		string(entry.Stage),
		nullableString(entry.ErrorCode),
		nullableString(entry.ErrorText),
		entry.ElapsedMS,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("record analysis journal entry: %w", err)
	}
	return nil
}

func (j *AnalysisJournal) GetByRequestID(ctx context.Context, requestID string) (*domain.JournalEntry, error) {
	row := j.db.QueryRowContext(ctx, `
SELECT request_id, operation, document_id, version_id, file_url, checksum, provider, status, stage, error_code, error_text, elapsed_ms, created_at
FROM analysis_journal
WHERE request_id = $1
`, requestID)

	var (
		entry      domain.JournalEntry
		documentID sql.NullInt64
		versionID  sql.NullInt64
		url        sql.NullString
		checksum   sql.NullString
		provider   sql.NullString
		status     string
		stage      string
		errorCode  sql.NullString
		errorText  sql.NullString
	)
	if err := row.Scan(
		&entry.RequestID,
		&entry.Operation,
		&documentID,
		&versionID,
		&url,
		&checksum,
		&provider,
		&status,
		&stage,
		&errorCode,
		&errorText,
		&entry.ElapsedMS,
		&entry.CreatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &domain.DocumentNotFoundError{Resource: "analysis", ID: requestID}
		}
		return nil, fmt.Errorf("get analysis journal entry: %w", err)
	}

	entry.DocumentID = documentID.Int64
	entry.VersionID = versionID.Int64
	entry.URL = url.String
	entry.Checksum = checksum.String
	entry.Provider = provider.String
	entry.Status = domain.JournalStatus(status)
	entry.Stage = domain.Stage(stage)
	entry.ErrorCode = errorCode.String
	entry.ErrorText = errorText.String
	return &entry, nil
}

func nullableString(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableInt64(v int64) any {
	if v == 0 {
		return nil
	}
	return v
}
