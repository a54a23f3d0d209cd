package chunk

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrPositionGap indicates a batch whose positions are not a contiguous
// 0..n-1 sequence.
var ErrPositionGap = errors.New("chunk positions must form a contiguous 0..n-1 sequence")

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

// CreateMany persists an ordered batch of chunks for one document in a single
// transaction. The batch must arrive with contiguous positions; nothing is
// assigned here.
func (r *PostgresRepo) CreateMany(ctx context.Context, documentID string, chunks []Chunk) error {
	if err := validatePositions(chunks); err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, document_id, content, position, metadata_page, metadata_section)
		VALUES ($1, $2, $3, $4, $5, $6)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, c := range chunks {
		var page sql.NullInt64
		var section sql.NullString
		if c.Metadata != nil {
			if c.Metadata.Page != nil {
				page = sql.NullInt64{Int64: int64(*c.Metadata.Page), Valid: true}
			}
			if c.Metadata.Section != nil {
				section = sql.NullString{String: *c.Metadata.Section, Valid: true}
			}
		}

		if _, err := stmt.ExecContext(ctx, c.ID, documentID, c.Content, c.Position, page, section); err != nil {
			return fmt.Errorf("inserting chunk at position %d: %w", c.Position, err)
		}
	}

	return tx.Commit()
}

// GetByDocument returns all chunks for a document ordered by position.
func (r *PostgresRepo) GetByDocument(ctx context.Context, documentID string) ([]Chunk, error) {
	query := `
		SELECT id, document_id, content, position, metadata_page, metadata_section, created_at
		FROM chunks
		WHERE document_id = $1
		ORDER BY position ASC`

	rows, err := r.db.QueryContext(ctx, query, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		var c Chunk
		var page sql.NullInt64
		var section sql.NullString
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Content, &c.Position, &page, &section, &c.CreatedAt); err != nil {
			return nil, err
		}
		if page.Valid || section.Valid {
			c.Metadata = &Metadata{}
			if page.Valid {
				p := int(page.Int64)
				c.Metadata.Page = &p
			}
			if section.Valid {
				s := section.String
				c.Metadata.Section = &s
			}
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// DeleteByDocument removes every chunk owned by the document. Deleting a
// document with zero chunks succeeds silently.
func (r *PostgresRepo) DeleteByDocument(ctx context.Context, documentID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = $1`, documentID)
	return err
}

// CountByDocument returns the live chunk count for a document, independent of
// the denormalized counter on the documents table.
func (r *PostgresRepo) CountByDocument(ctx context.Context, documentID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks WHERE document_id = $1`, documentID).Scan(&count)
	return count, err
}

func (r *PostgresRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&count)
	return count, err
}

func validatePositions(chunks []Chunk) error {
	for i, c := range chunks {
		if c.Position != i {
			return fmt.Errorf("%w: got %d at index %d", ErrPositionGap, c.Position, i)
		}
	}
	return nil
}
