package catalog

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/handoff/integration/database/pg"
)

const (
	productColumns = `id, name, category, price::float8, tags, stock, image_url`

	pgGetProduct   = `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	pgListProducts = `SELECT ` + productColumns + ` FROM products ORDER BY id`
	pgCount        = `SELECT count(*) FROM products`
	pgUpsert       = `INSERT INTO products (id, name, category, price, tags, stock, image_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			category = EXCLUDED.category,
			price = EXCLUDED.price,
			tags = EXCLUDED.tags,
			stock = EXCLUDED.stock,
			image_url = EXCLUDED.image_url`
)

// PostgresRepository keeps products in the products table.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a PostgresRepository on pool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (Product, error) {
	p, err := scanProduct(pg.Conn(ctx, r.pool).QueryRow(ctx, pgGetProduct, id))
	if err != nil {
		if pg.IsNotFoundError(err) {
			return Product{}, ErrNotFound
		}
		return Product{}, errors.Join(ErrStoreFailure, err)
	}
	return p, nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]Product, error) {
	rows, err := pg.Conn(ctx, r.pool).Query(ctx, pgListProducts)
	if err != nil {
		return nil, errors.Join(ErrStoreFailure, err)
	}

	products, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Product, error) {
		return scanProduct(row)
	})
	if err != nil {
		return nil, errors.Join(ErrStoreFailure, err)
	}
	return products, nil
}

func (r *PostgresRepository) Upsert(ctx context.Context, p Product) error {
	if err := p.validate(); err != nil {
		return err
	}

	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	_, err := pg.Conn(ctx, r.pool).Exec(ctx, pgUpsert,
		p.ID, p.Name, p.Category, p.Price, tags, p.Stock, p.ImageURL)
	if err != nil {
		return errors.Join(ErrStoreFailure, err)
	}
	return nil
}

func (r *PostgresRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := pg.Conn(ctx, r.pool).QueryRow(ctx, pgCount).Scan(&n); err != nil {
		return 0, errors.Join(ErrStoreFailure, err)
	}
	return n, nil
}

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.Category, &p.Price, &p.Tags, &p.Stock, &p.ImageURL)
	return p, err
}
