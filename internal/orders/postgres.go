package orders

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/lib/pq"
	_ "github.com/lib/pq"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore persists orders in Postgres.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens the database, pings it and applies migrations.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(10)

	s := &PostgresStore{db: db}
	if err := s.runMigrations(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) runMigrations() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("could not load migrations: %w", err)
	}
	driver, err := postgres.WithInstance(s.db, &postgres.Config{
		MigrationsTable: "orders_schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("could not create migrator: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

func (s *PostgresStore) Create(ctx context.Context, o *Order) error {
	lines, err := json.Marshal(o.Lines)
	if err != nil {
		return fmt.Errorf("marshal order lines failed: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO orders (id, terminal_id, customer_id, lines, coupons,
			subtotal, discount_total, total_tax, total, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		o.ID, o.TerminalID, o.CustomerID, lines, pq.Array(o.Coupons),
		o.Subtotal, o.DiscountTotal, o.TotalTax, o.Total, o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order failed: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Order, error) {
	var (
		o     Order
		lines []byte
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, terminal_id, customer_id, lines, coupons,
			subtotal, discount_total, total_tax, total, created_at
		FROM orders WHERE id = $1`, id,
	).Scan(&o.ID, &o.TerminalID, &o.CustomerID, &lines, pq.Array(&o.Coupons),
		&o.Subtotal, &o.DiscountTotal, &o.TotalTax, &o.Total, &o.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select order failed: %w", err)
	}
	if err := json.Unmarshal(lines, &o.Lines); err != nil {
		return nil, fmt.Errorf("unmarshal order lines failed: %w", err)
	}
	return &o, nil
}

// Close releases the underlying connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
