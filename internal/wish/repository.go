package wish

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, ownerID string, input CreateInput) (Wish, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Wish{}, fmt.Errorf("generate wish id: %w", err)
	}

	now := time.Now().UTC()
	w := Wish{
		ID:            id.String(),
		Title:         input.Title,
		Link:          input.Link,
		PriceEstimate: input.PriceEstimate,
		Notes:         input.Notes,
		OwnerID:       ownerID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO wishes (id, title, link, price_estimate, notes, owner_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
	`, w.ID, w.Title, w.Link, w.PriceEstimate, w.Notes, w.OwnerID, now)
	if err != nil {
		return Wish{}, fmt.Errorf("insert wish: %w", err)
	}

	return w, nil
}

// ListByOwner returns the owner's wishes, optionally capped by price, newest
// first.
func (r *Repository) ListByOwner(ctx context.Context, ownerID string, maxPrice *float64, limit, offset int) ([]Wish, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, title, link, price_estimate, notes, owner_id, created_at, updated_at
		FROM wishes
		WHERE owner_id = $1
		  AND ($2::numeric IS NULL OR price_estimate <= $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`, ownerID, maxPrice, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query wishes: %w", err)
	}
	defer rows.Close()

	wishes := make([]Wish, 0)
	for rows.Next() {
		w, err := scanWish(rows.Scan)
		if err != nil {
			return nil, err
		}
		wishes = append(wishes, w)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wishes: %w", err)
	}

	return wishes, nil
}

func (r *Repository) GetByID(ctx context.Context, id string) (Wish, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, title, link, price_estimate, notes, owner_id, created_at, updated_at
		FROM wishes
		WHERE id = $1
	`, id)

	return scanWish(row.Scan)
}

func (r *Repository) Update(ctx context.Context, w Wish) (Wish, error) {
	w.UpdatedAt = time.Now().UTC()

	err := r.db.QueryRowContext(ctx, `
		UPDATE wishes
		SET title = $2, link = $3, price_estimate = $4, notes = $5, updated_at = $6
		WHERE id = $1
		RETURNING id, title, link, price_estimate, notes, owner_id, created_at, updated_at
	`, w.ID, w.Title, w.Link, w.PriceEstimate, w.Notes, w.UpdatedAt).
		Scan(&w.ID, &w.Title, &w.Link, &w.PriceEstimate, &w.Notes, &w.OwnerID, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Wish{}, err
		}
		return Wish{}, fmt.Errorf("update wish: %w", err)
	}

	return w, nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM wishes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete wish: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete wish rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}

	return nil
}

func scanWish(scan func(dest ...any) error) (Wish, error) {
	var w Wish
	err := scan(&w.ID, &w.Title, &w.Link, &w.PriceEstimate, &w.Notes, &w.OwnerID, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Wish{}, err
		}
		return Wish{}, fmt.Errorf("scan wish: %w", err)
	}

	return w, nil
}
