package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agenthands/corpus/internal/apperr"
	"github.com/agenthands/corpus/internal/logger"
	"github.com/agenthands/corpus/internal/model"
)

const pgUniqueViolation = "23505"

const schemaDDL = `
CREATE TABLE IF NOT EXISTS sequences (
	partition  TEXT PRIMARY KEY,
	seq        BIGINT NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS allocations (
	id           TEXT PRIMARY KEY,
	partition    TEXT NOT NULL,
	seq          BIGINT NOT NULL,
	content_hash TEXT NOT NULL UNIQUE,
	committed    BOOLEAN NOT NULL DEFAULT FALSE,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (partition, seq)
);
CREATE TABLE IF NOT EXISTS documents (
	id               TEXT PRIMARY KEY,
	content_hash     TEXT NOT NULL,
	title            TEXT NOT NULL,
	source           TEXT NOT NULL,
	document_type    TEXT NOT NULL,
	publication_date TEXT NOT NULL,
	content          TEXT NOT NULL DEFAULT '',
	metadata         JSONB NOT NULL DEFAULT '{}',
	state            TEXT NOT NULL,
	duplicate_of     TEXT NOT NULL DEFAULT '',
	supersedes_id    TEXT NOT NULL DEFAULT '',
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS documents_hash_idx ON documents (content_hash);
CREATE INDEX IF NOT EXISTS documents_source_idx ON documents (source, document_type);
CREATE TABLE IF NOT EXISTS relationships (
	source_id         TEXT NOT NULL,
	target_id         TEXT NOT NULL,
	relationship_type TEXT NOT NULL,
	confidence        DOUBLE PRECISION NOT NULL,
	context           TEXT NOT NULL DEFAULT '',
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (source_id, target_id, relationship_type)
);
CREATE TABLE IF NOT EXISTS pending_relationships (
	id                BIGSERIAL PRIMARY KEY,
	source_id         TEXT NOT NULL,
	target_id         TEXT NOT NULL,
	relationship_type TEXT NOT NULL,
	confidence        DOUBLE PRECISION NOT NULL,
	context           TEXT NOT NULL DEFAULT '',
	enqueued_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS jobs (
	id          TEXT PRIMARY KEY,
	source_id   TEXT NOT NULL,
	state       TEXT NOT NULL,
	total       INT NOT NULL DEFAULT 0,
	processed   INT NOT NULL DEFAULT 0,
	failed      INT NOT NULL DEFAULT 0,
	duplicates  INT NOT NULL DEFAULT 0,
	errors      JSONB NOT NULL DEFAULT '[]',
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ
);
`

// Postgres implements Relational over a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
	log  *logger.Logger
}

func NewPostgres(ctx context.Context, dsn string, log *logger.Logger) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return &Postgres{pool: pool, log: log.With("store", "postgres")}, nil
}

func (p *Postgres) Close() { p.pool.Close() }

func (p *Postgres) Bootstrap(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("failed to bootstrap schema: %w", err)
	}
	return nil
}

// NextSequence is the compare-and-swap sequence increment: one row per
// partition, upserted atomically. Issued values are never handed out twice.
func (p *Postgres) NextSequence(ctx context.Context, partition string) (int64, error) {
	var seq int64
	err := p.pool.QueryRow(ctx, `
		INSERT INTO sequences (partition, seq) VALUES ($1, 1)
		ON CONFLICT (partition) DO UPDATE SET seq = sequences.seq + 1
		RETURNING seq`, partition).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("failed to increment sequence for %s: %w", partition, wrapPg(err))
	}
	return seq, nil
}

func (p *Postgres) AllocationByHash(ctx context.Context, contentHash string) (*model.Allocation, error) {
	var a model.Allocation
	err := p.pool.QueryRow(ctx, `
		SELECT id, partition, seq, content_hash, committed, created_at
		FROM allocations WHERE content_hash = $1`, contentHash).
		Scan(&a.ID, &a.Partition, &a.Sequence, &a.ContentHash, &a.Committed, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load allocation: %w", wrapPg(err))
	}
	return &a, nil
}

func (p *Postgres) InsertAllocation(ctx context.Context, a *model.Allocation) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO allocations (id, partition, seq, content_hash, committed, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		a.ID, a.Partition, a.Sequence, a.ContentHash, a.Committed, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert allocation %s: %w", a.ID, wrapPg(err))
	}
	return nil
}

func (p *Postgres) CommitDocument(ctx context.Context, d *model.Document) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin commit: %w", wrapPg(err))
	}
	defer func() { _ = tx.Rollback(ctx) }()

	meta, err := json.Marshal(orEmpty(d.Metadata))
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO documents
			(id, content_hash, title, source, document_type, publication_date,
			 content, metadata, state, duplicate_of, supersedes_id, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO NOTHING`,
		d.ID, d.ContentHash, d.Title, d.Source, d.DocumentType, d.PublicationDate,
		d.Content, meta, string(d.State), d.DuplicateOf, d.SupersedesID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to insert document %s: %w", d.ID, wrapPg(err))
	}
	if _, err := tx.Exec(ctx,
		`UPDATE allocations SET committed = TRUE WHERE id = $1`, d.ID); err != nil {
		return fmt.Errorf("failed to mark allocation committed: %w", wrapPg(err))
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit document %s: %w", d.ID, wrapPg(err))
	}
	return nil
}

func (p *Postgres) RecordDuplicate(ctx context.Context, d *model.Document) error {
	meta, err := json.Marshal(orEmpty(d.Metadata))
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	_, err = p.pool.Exec(ctx, `
		INSERT INTO documents
			(id, content_hash, title, source, document_type, publication_date,
			 content, metadata, state, duplicate_of, supersedes_id, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO NOTHING`,
		d.ID, d.ContentHash, d.Title, d.Source, d.DocumentType, d.PublicationDate,
		d.Content, meta, string(d.State), d.DuplicateOf, d.SupersedesID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to record duplicate marker %s: %w", d.ID, wrapPg(err))
	}
	return nil
}

func (p *Postgres) SetDocumentState(ctx context.Context, id string, st model.DocumentState) error {
	tag, err := p.pool.Exec(ctx,
		`UPDATE documents SET state = $2, updated_at = now() WHERE id = $1`, id, string(st))
	if err != nil {
		return fmt.Errorf("failed to set state for %s: %w", id, wrapPg(err))
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

const documentColumns = `id, content_hash, title, source, document_type,
	publication_date, content, metadata, state, duplicate_of, supersedes_id, updated_at`

func (p *Postgres) Document(ctx context.Context, id string) (*model.Document, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = $1`, id)
	return scanDocument(row)
}

func (p *Postgres) DocumentByHash(ctx context.Context, contentHash string) (*model.Document, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT `+documentColumns+` FROM documents
		 WHERE content_hash = $1 AND state <> $2
		 ORDER BY updated_at ASC LIMIT 1`, contentHash, string(model.StateDuplicate))
	return scanDocument(row)
}

func (p *Postgres) CommittedDocuments(ctx context.Context, offset, limit int) ([]model.Document, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT `+documentColumns+` FROM documents
		 WHERE state IN ($1, $2) ORDER BY id OFFSET $3 LIMIT $4`,
		string(model.StateCommitted), string(model.StateCommittedPartial), offset, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list committed documents: %w", wrapPg(err))
	}
	defer rows.Close()
	return scanDocuments(rows)
}

func (p *Postgres) SearchDocuments(ctx context.Context, f DocumentFilter) ([]model.Document, error) {
	q := `SELECT ` + documentColumns + ` FROM documents WHERE state = $1`
	args := []any{string(model.StateCommitted)}
	n := 1
	add := func(cond string, v any) {
		n++
		q += fmt.Sprintf(" AND "+cond, n)
		args = append(args, v)
	}
	if f.Source != "" {
		add("source = $%d", f.Source)
	}
	if f.DocumentType != "" {
		add("document_type = $%d", f.DocumentType)
	}
	if f.DateFrom != "" {
		add("publication_date >= $%d", f.DateFrom)
	}
	if f.DateTo != "" {
		add("publication_date <= $%d", f.DateTo)
	}
	// Multi-term text queries require every term to hit title or content.
	for _, term := range strings.Fields(f.Text) {
		n++
		q += fmt.Sprintf(" AND (title ILIKE '%%' || $%d || '%%' OR content ILIKE '%%' || $%d || '%%')", n, n)
		args = append(args, term)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)
	q += fmt.Sprintf(" ORDER BY publication_date DESC, id LIMIT $%d", n+1)

	rows, err := p.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search documents: %w", wrapPg(err))
	}
	defer rows.Close()
	return scanDocuments(rows)
}

func (p *Postgres) InsertRelationship(ctx context.Context, r *model.Relationship) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO relationships (source_id, target_id, relationship_type, confidence, context)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (source_id, target_id, relationship_type) DO UPDATE
			SET confidence = EXCLUDED.confidence, context = EXCLUDED.context`,
		r.SourceID, r.TargetID, r.Type, r.Confidence, r.Context)
	if err != nil {
		return fmt.Errorf("failed to insert relationship: %w", wrapPg(err))
	}
	return nil
}

func (p *Postgres) EnqueuePending(ctx context.Context, r *model.Relationship) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO pending_relationships (source_id, target_id, relationship_type, confidence, context)
		VALUES ($1, $2, $3, $4, $5)`,
		r.SourceID, r.TargetID, r.Type, r.Confidence, r.Context)
	if err != nil {
		return fmt.Errorf("failed to enqueue pending relationship: %w", wrapPg(err))
	}
	return nil
}

func (p *Postgres) PendingRelationships(ctx context.Context) ([]model.PendingRelationship, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, source_id, target_id, relationship_type, confidence, context, enqueued_at
		FROM pending_relationships ORDER BY enqueued_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending relationships: %w", wrapPg(err))
	}
	defer rows.Close()

	var out []model.PendingRelationship
	for rows.Next() {
		var pr model.PendingRelationship
		if err := rows.Scan(&pr.ID, &pr.Rel.SourceID, &pr.Rel.TargetID, &pr.Rel.Type,
			&pr.Rel.Confidence, &pr.Rel.Context, &pr.EnqueuedAt); err != nil {
			return nil, fmt.Errorf("failed to scan pending relationship: %w", err)
		}
		out = append(out, pr)
	}
	return out, rows.Err()
}

func (p *Postgres) DeletePending(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := p.pool.Exec(ctx,
		`DELETE FROM pending_relationships WHERE id = ANY($1)`, ids); err != nil {
		return fmt.Errorf("failed to delete pending relationships: %w", wrapPg(err))
	}
	return nil
}

func (p *Postgres) CreateJob(ctx context.Context, j *model.IngestionJob) error {
	errs, err := json.Marshal(j.Errors)
	if err != nil {
		return fmt.Errorf("failed to encode job errors: %w", err)
	}
	_, err = p.pool.Exec(ctx, `
		INSERT INTO jobs (id, source_id, state, total, processed, failed, duplicates, errors, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		j.ID, j.SourceID, string(j.State), j.Total, j.Processed, j.Failed, j.Duplicates, errs, j.StartedAt, j.FinishedAt)
	if err != nil {
		return fmt.Errorf("failed to create job %s: %w", j.ID, wrapPg(err))
	}
	return nil
}

func (p *Postgres) UpdateJob(ctx context.Context, j *model.IngestionJob) error {
	errs, err := json.Marshal(j.Errors)
	if err != nil {
		return fmt.Errorf("failed to encode job errors: %w", err)
	}
	_, err = p.pool.Exec(ctx, `
		UPDATE jobs SET state = $2, total = $3, processed = $4, failed = $5,
			duplicates = $6, errors = $7, finished_at = $8
		WHERE id = $1`,
		j.ID, string(j.State), j.Total, j.Processed, j.Failed, j.Duplicates, errs, j.FinishedAt)
	if err != nil {
		return fmt.Errorf("failed to update job %s: %w", j.ID, wrapPg(err))
	}
	return nil
}

func (p *Postgres) Job(ctx context.Context, id string) (*model.IngestionJob, error) {
	var j model.IngestionJob
	var state string
	var errs []byte
	err := p.pool.QueryRow(ctx, `
		SELECT id, source_id, state, total, processed, failed, duplicates, errors, started_at, finished_at
		FROM jobs WHERE id = $1`, id).
		Scan(&j.ID, &j.SourceID, &state, &j.Total, &j.Processed, &j.Failed, &j.Duplicates, &errs, &j.StartedAt, &j.FinishedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load job %s: %w", id, wrapPg(err))
	}
	j.State = model.JobState(state)
	if err := json.Unmarshal(errs, &j.Errors); err != nil {
		return nil, fmt.Errorf("failed to decode job errors: %w", err)
	}
	return &j, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*model.Document, error) {
	var d model.Document
	var state string
	var meta []byte
	err := row.Scan(&d.ID, &d.ContentHash, &d.Title, &d.Source, &d.DocumentType,
		&d.PublicationDate, &d.Content, &meta, &state, &d.DuplicateOf, &d.SupersedesID, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan document: %w", err)
	}
	d.State = model.DocumentState(state)
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &d.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata: %w", err)
		}
	}
	return &d, nil
}

func scanDocuments(rows pgx.Rows) ([]model.Document, error) {
	var out []model.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// wrapPg maps postgres error classes onto the app taxonomy so callers branch
// on sentinels, not driver internals.
func wrapPg(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return fmt.Errorf("%w: %s", apperr.ErrConflict, pgErr.ConstraintName)
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return fmt.Errorf("%w: %v", apperr.ErrSourceUnavailable, err)
	}
	return err
}

func orEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
