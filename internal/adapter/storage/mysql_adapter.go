package storage

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

// MySQLAdapter serves both as a key-value backend (kv_entries) and as a
// read-only catalog source (products).
type MySQLAdapter struct {
	db *sqlx.DB
}

func NewMySQLAdapter(db *sqlx.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

func (m *MySQLAdapter) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := m.db.GetContext(ctx, &value, `SELECT v FROM kv_entries WHERE k = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrKeyNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "select kv %s", key)
	}
	return value, nil
}

func (m *MySQLAdapter) Set(ctx context.Context, key string, value []byte) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO kv_entries (k, v, updated_at) VALUES (?, ?, NOW())
		ON DUPLICATE KEY UPDATE v = VALUES(v), updated_at = NOW()`,
		key, value,
	)
	if err != nil {
		return errors.Wrapf(err, "upsert kv %s", key)
	}
	return nil
}

func (m *MySQLAdapter) Delete(ctx context.Context, key string) error {
	if _, err := m.db.ExecContext(ctx, `DELETE FROM kv_entries WHERE k = ?`, key); err != nil {
		return errors.Wrapf(err, "delete kv %s", key)
	}
	return nil
}

func (m *MySQLAdapter) ListProducts(ctx context.Context) ([]domain.Product, error) {
	products := make([]domain.Product, 0)
	err := m.db.SelectContext(ctx, &products, `
		SELECT id, name, price, image, category, description, stock
		FROM products
		ORDER BY position, id`,
	)
	if err != nil {
		return nil, errors.Wrap(err, "select products")
	}
	return products, nil
}

// SeedProducts inserts products that are not in the table yet, keeping the
// given order as display order.
func (m *MySQLAdapter) SeedProducts(ctx context.Context, products []domain.Product) error {
	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer tx.Rollback()

	for i, p := range products {
		_, err := tx.ExecContext(ctx, `
			INSERT IGNORE INTO products (id, name, price, image, category, description, stock, position)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, p.Name, p.Price, p.Image, p.Category, p.Description, p.Stock, i,
		)
		if err != nil {
			return errors.Wrapf(err, "insert product %s", p.ID)
		}
	}

	return errors.Wrap(tx.Commit(), "commit seed")
}

func (m *MySQLAdapter) Ping(ctx context.Context) error {
	return m.db.PingContext(ctx)
}
