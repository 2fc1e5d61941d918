package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	pingTimeout  = 1 * time.Second
	queryTimeout = 3 * time.Second

	pgUniqueViolation = "23505"
)

const ledgerSchema = `
CREATE TABLE IF NOT EXISTS order_ledger (
	order_id          TEXT PRIMARY KEY,
	idempotency_key   TEXT UNIQUE,
	fingerprint       TEXT NOT NULL,
	body              JSONB NOT NULL,
	telegram_notified BOOLEAN NOT NULL DEFAULT FALSE,
	placed_at         TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS order_ledger_placed_at_idx ON order_ledger (placed_at);`

var ledgerColumns = []string{"order_id", "idempotency_key", "fingerprint", "body", "telegram_notified", "placed_at"}

type PostgresLedger struct {
	pool *pgxpool.Pool
	sq   squirrel.StatementBuilderType
	ttl  time.Duration
	now  func() time.Time
}

func NewPostgresLedger(pool *pgxpool.Pool, ttl time.Duration) *PostgresLedger {
	if ttl <= 0 {
		ttl = DefaultRetention
	}
	return &PostgresLedger{
		pool: pool,
		sq:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		ttl:  ttl,
		now:  time.Now,
	}
}

func (l *PostgresLedger) EnsureSchema(ctx context.Context) error {
	return withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		_, err := l.pool.Exec(ctx, ledgerSchema)
		return err
	})
}

func (l *PostgresLedger) Ping(ctx context.Context) error {
	return withTimeout(ctx, pingTimeout, func(ctx context.Context) error {
		return l.pool.Ping(ctx)
	})
}

func (l *PostgresLedger) Put(ctx context.Context, rec Record) error {
	const op = "orders.PostgresLedger.Put"

	body, err := json.Marshal(rec.Order)
	if err != nil {
		return fmt.Errorf("%s: encode: %w", op, err)
	}

	var key any
	if rec.IdempotencyKey != "" {
		key = rec.IdempotencyKey
	}

	err = withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		tx, err := l.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("%s: begin: %w", op, err)
		}
		defer func() { _ = tx.Rollback(ctx) }()

		// an expired record must not hold its key hostage
		if key != nil {
			sql, args, err := l.sq.Delete("order_ledger").
				Where(squirrel.Eq{"idempotency_key": key}).
				Where(squirrel.Lt{"placed_at": l.cutoff()}).
				ToSql()
			if err != nil {
				return fmt.Errorf("%s: build purge: %w", op, err)
			}
			if _, err := tx.Exec(ctx, sql, args...); err != nil {
				return fmt.Errorf("%s: purge: %w", op, err)
			}
		}

		sql, args, err := l.sq.Insert("order_ledger").
			Columns(ledgerColumns...).
			Values(rec.OrderID, key, rec.Fingerprint, body, rec.TelegramNotified, rec.PlacedAt.UTC()).
			ToSql()
		if err != nil {
			return fmt.Errorf("%s: build insert: %w", op, err)
		}
		if _, err := tx.Exec(ctx, sql, args...); err != nil {
			return err
		}
		return tx.Commit(ctx)
	})

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return ErrDuplicateKey
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (l *PostgresLedger) SetNotified(ctx context.Context, orderID string, notified bool) error {
	sql, args, err := l.sq.Update("order_ledger").
		Set("telegram_notified", notified).
		Where(squirrel.Eq{"order_id": orderID}).
		ToSql()
	if err != nil {
		return err
	}
	return withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		_, err := l.pool.Exec(ctx, sql, args...)
		return err
	})
}

func (l *PostgresLedger) ByID(ctx context.Context, orderID string) (Record, bool, error) {
	return l.selectOne(ctx, squirrel.Eq{"order_id": orderID})
}

func (l *PostgresLedger) ByKey(ctx context.Context, key string) (Record, bool, error) {
	return l.selectOne(ctx, squirrel.Eq{"idempotency_key": key})
}

func (l *PostgresLedger) selectOne(ctx context.Context, where squirrel.Eq) (Record, bool, error) {
	sql, args, err := l.sq.Select(ledgerColumns...).
		From("order_ledger").
		Where(where).
		Where(squirrel.GtOrEq{"placed_at": l.cutoff()}).
		ToSql()
	if err != nil {
		return Record{}, false, err
	}

	var rec Record
	err = withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		var (
			key  *string
			body []byte
		)
		row := l.pool.QueryRow(ctx, sql, args...)
		if err := row.Scan(&rec.OrderID, &key, &rec.Fingerprint, &body, &rec.TelegramNotified, &rec.PlacedAt); err != nil {
			return err
		}
		if key != nil {
			rec.IdempotencyKey = *key
		}
		return json.Unmarshal(body, &rec.Order)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}
	return rec, true, nil
}

// Purge drops records older than the retention window.
func (l *PostgresLedger) Purge(ctx context.Context) (int64, error) {
	sql, args, err := l.sq.Delete("order_ledger").
		Where(squirrel.Lt{"placed_at": l.cutoff()}).
		ToSql()
	if err != nil {
		return 0, err
	}

	var n int64
	err = withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		tag, err := l.pool.Exec(ctx, sql, args...)
		n = tag.RowsAffected()
		return err
	})
	return n, err
}

func (l *PostgresLedger) cutoff() time.Time {
	return l.now().Add(-l.ttl).UTC()
}

func withTimeout(parent context.Context, d time.Duration, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(parent, d)
	defer cancel()
	return fn(ctx)
}
