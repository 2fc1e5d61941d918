package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const (
	pingTimeout  = 1 * time.Second
	queryTimeout = 3 * time.Second
)

const schema = `
CREATE TABLE IF NOT EXISTS menu_categories (
	id       TEXT PRIMARY KEY,
	name     TEXT NOT NULL,
	icon     TEXT NOT NULL DEFAULT '',
	position INT  NOT NULL
);
CREATE TABLE IF NOT EXISTS menu_products (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	price       NUMERIC(12,2) NOT NULL CHECK (price >= 0),
	category    TEXT NOT NULL,
	image       TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	tags        TEXT[] NOT NULL DEFAULT '{}',
	calories    INT NOT NULL DEFAULT 0,
	position    INT NOT NULL
);`

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	return withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		_, err := s.pool.Exec(ctx, schema)
		return err
	})
}

// SeedIfEmpty loads menu into empty tables and leaves populated ones alone.
func (s *PostgresStore) SeedIfEmpty(ctx context.Context, menu Menu) (bool, error) {
	const op = "catalog.PostgresStore.SeedIfEmpty"

	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM menu_products`).Scan(&n); err != nil {
		return false, fmt.Errorf("%s: count: %w", op, err)
	}
	if n > 0 {
		return false, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("%s: begin: %w", op, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	for i, c := range menu.Categories {
		batch.Queue(`INSERT INTO menu_categories (id, name, icon, position) VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO NOTHING`, c.ID, c.Name, c.Icon, i)
	}
	for i, p := range menu.Products {
		tags := p.Tags
		if tags == nil {
			tags = []string{}
		}
		batch.Queue(`INSERT INTO menu_products (id, name, price, category, image, description, tags, calories, position)
			VALUES ($1, $2, $3::numeric, $4, $5, $6, $7, $8, $9)`,
			p.ID, p.Name, p.Price.String(), p.Category, p.Image, p.Description, tags, p.Calories, i)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return false, fmt.Errorf("%s: insert: %w", op, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("%s: commit: %w", op, err)
	}
	return true, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return withTimeout(ctx, pingTimeout, func(ctx context.Context) error {
		return s.pool.Ping(ctx)
	})
}

const productColumns = `id, name, price::text, category, image, description, tags, calories`

func (s *PostgresStore) List(ctx context.Context) ([]Product, error) {
	var out []Product

	err := withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		rows, err := s.pool.Query(ctx, `SELECT `+productColumns+` FROM menu_products ORDER BY position ASC, id ASC`)
		if err != nil {
			return err
		}
		defer rows.Close()

		out = make([]Product, 0, 16)
		for rows.Next() {
			p, err := scanProduct(rows)
			if err != nil {
				return err
			}
			out = append(out, p)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (Product, bool, error) {
	var p Product

	err := withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		var err error
		p, err = scanProduct(s.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM menu_products WHERE id = $1`, id))
		return err
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, false, nil
	}
	if err != nil {
		return Product{}, false, err
	}
	return p, true, nil
}

func (s *PostgresStore) Categories(ctx context.Context) ([]Category, error) {
	var out []Category

	err := withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		rows, err := s.pool.Query(ctx, `SELECT id, name, icon FROM menu_categories ORDER BY position ASC`)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var c Category
			if err := rows.Scan(&c.ID, &c.Name, &c.Icon); err != nil {
				return err
			}
			out = append(out, c)
		}
		return rows.Err()
	})
	return out, err
}

func scanProduct(row pgx.Row) (Product, error) {
	var (
		p     Product
		price string
	)
	if err := row.Scan(&p.ID, &p.Name, &price, &p.Category, &p.Image, &p.Description, &p.Tags, &p.Calories); err != nil {
		return Product{}, err
	}
	d, err := decimal.NewFromString(price)
	if err != nil {
		return Product{}, fmt.Errorf("price of %s: %w", p.ID, err)
	}
	p.Price = d
	return p, nil
}

func withTimeout(parent context.Context, d time.Duration, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(parent, d)
	defer cancel()
	return fn(ctx)
}
