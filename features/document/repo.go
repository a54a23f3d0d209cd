package document

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

const uniqueViolation = "23505"

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Create(ctx context.Context, doc *Document) error {
	var title, description sql.NullString
	var tags []string
	if doc.Metadata != nil {
		if doc.Metadata.Title != "" {
			title = sql.NullString{String: doc.Metadata.Title, Valid: true}
		}
		if doc.Metadata.Description != "" {
			description = sql.NullString{String: doc.Metadata.Description, Valid: true}
		}
		tags = doc.Metadata.Tags
	}

	query := `
		INSERT INTO documents (id, filename, storage_handle, status, metadata_title, metadata_description, metadata_tags, chunk_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		doc.ID, doc.Filename, doc.StorageHandle, string(doc.Status),
		title, description, pq.Array(tags), doc.ChunkCount,
	).Scan(&doc.CreatedAt, &doc.UpdatedAt)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return ErrConflict
	}
	return err
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (*Document, error) {
	query := `
		SELECT id, filename, storage_handle, status, metadata_title, metadata_description, metadata_tags, chunk_count, created_at, updated_at
		FROM documents
		WHERE id = $1`

	doc, err := scanDocument(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return doc, err
}

func (r *PostgresRepo) List(ctx context.Context, limit, offset int) ([]Document, error) {
	query := `
		SELECT id, filename, storage_handle, status, metadata_title, metadata_description, metadata_tags, chunk_count, created_at, updated_at
		FROM documents
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`

	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

func (r *PostgresRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count)
	return count, err
}

func (r *PostgresRepo) CountByStatus(ctx context.Context, status Status) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents WHERE status = $1`, string(status)).Scan(&count)
	return count, err
}

func (r *PostgresRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *PostgresRepo) UpdateStatus(ctx context.Context, id string, status Status) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE documents SET status = $1, updated_at = NOW() WHERE id = $2`,
		string(status), id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *PostgresRepo) UpdateChunkCount(ctx context.Context, id string, count int) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE documents SET chunk_count = $1, updated_at = NOW() WHERE id = $2`,
		count, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanDocument(row scanner) (*Document, error) {
	var doc Document
	var status string
	var title, description sql.NullString
	var tags []string

	err := row.Scan(&doc.ID, &doc.Filename, &doc.StorageHandle, &status,
		&title, &description, pq.Array(&tags), &doc.ChunkCount,
		&doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return nil, err
	}

	doc.Status = Status(status)
	if title.Valid || description.Valid || len(tags) > 0 {
		doc.Metadata = &Metadata{
			Title:       title.String,
			Description: description.String,
			Tags:        tags,
		}
	}

	return &doc, nil
}

func requireAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
