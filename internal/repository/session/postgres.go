package session

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"crystal-bloomery/internal/domain"
)

type postgresRepo struct {
	pool *pgxpool.Pool
}

// NewPostgres returns a Repository backed by the cart_sessions tables.
func NewPostgres(pool *pgxpool.Pool) Repository {
	return &postgresRepo{pool: pool}
}

func (r *postgresRepo) Load(ctx context.Context, token string) (*domain.CartSession, error) {
	const sessionQuery = `
SELECT cart_id, checkout_url
FROM cart_sessions
WHERE token = $1
`
	var sess domain.CartSession
	if err := r.pool.QueryRow(ctx, sessionQuery, token).Scan(&sess.CartID, &sess.CheckoutURL); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	const linesQuery = `
SELECT variant_id, line_id, title, image_url, price_cents, currency, options, quantity
FROM cart_session_lines
WHERE token = $1
ORDER BY position
`
	rows, err := r.pool.Query(ctx, linesQuery, token)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var line domain.CartLine
		var imageURL *string
		if err := rows.Scan(
			&line.VariantID,
			&line.LineID,
			&line.Title,
			&imageURL,
			&line.PriceCents,
			&line.Currency,
			&line.Options,
			&line.Quantity,
		); err != nil {
			return nil, err
		}
		if imageURL != nil {
			line.ImageURL = *imageURL
		}
		sess.Lines = append(sess.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (r *postgresRepo) Save(ctx context.Context, token string, session *domain.CartSession) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const upsert = `
INSERT INTO cart_sessions (token, cart_id, checkout_url, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (token) DO UPDATE
SET cart_id = EXCLUDED.cart_id,
    checkout_url = EXCLUDED.checkout_url,
    updated_at = now()
`
	if _, err := tx.Exec(ctx, upsert, token, session.CartID, session.CheckoutURL); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM cart_session_lines WHERE token = $1`, token); err != nil {
		return err
	}

	const insertLine = `
INSERT INTO cart_session_lines (token, position, variant_id, line_id, title, image_url, price_cents, currency, options, quantity)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
`
	for i, line := range session.Lines {
		var imageURL *string
		if line.ImageURL != "" {
			imageURL = &line.ImageURL
		}
		if _, err := tx.Exec(ctx, insertLine,
			token,
			i,
			line.VariantID,
			line.LineID,
			line.Title,
			imageURL,
			line.PriceCents,
			line.Currency,
			line.Options,
			line.Quantity,
		); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (r *postgresRepo) Delete(ctx context.Context, token string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM cart_sessions WHERE token = $1`, token)
	return err
}
