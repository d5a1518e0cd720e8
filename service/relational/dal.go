// Package relational is the PostgreSQL (RDS) data access layer: idempotent
// schema setup and a parameterized CRUD round trip over the demo tables,
// bounded by a cooperative deadline.
package relational

import (
	"context"
	"errors"
	"fmt"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lumigo-io/lambda-telemetry-demo/service"
	"github.com/lumigo-io/lambda-telemetry-demo/telemetry"
	"time"
)

// ErrDeadlineExceeded classifies a workflow aborted by its deadline, distinct
// from a generic operation failure.
var ErrDeadlineExceeded = errors.New("relational workflow deadline exceeded")

// Querier is the subset of the pgx API this DAL needs. *pgxpool.Pool
// satisfies it; tests inject fakes.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ Querier = (*pgxpool.Pool)(nil)

type User struct {
	ID        string
	Username  string
	Email     string
	CreatedAt time.Time
	Status    string
}

type Product struct {
	ID       string
	Name     string
	Price    float64
	Category string
}

type Order struct {
	ID          string
	UserID      string
	TotalAmount float64
	Status      string
}

type Result struct {
	UserID          string `json:"user_id"`
	OperationsCount int    `json:"operations_count"`
}

type DAL struct {
	db      Querier
	timeout time.Duration
}

func NewDAL(db Querier, timeout time.Duration) *DAL {
	return &DAL{
		db:      db,
		timeout: timeout,
	}
}

// EnsureSchema creates the demo tables when missing. CREATE TABLE IF NOT
// EXISTS makes this idempotent and race-tolerant.
func (d *DAL) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS users (
    id VARCHAR(255) PRIMARY KEY,
    username VARCHAR(255) NOT NULL,
    email VARCHAR(255) NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    status VARCHAR(50) DEFAULT 'active'
)
`,
		`
CREATE TABLE IF NOT EXISTS products (
    id VARCHAR(255) PRIMARY KEY,
    name VARCHAR(255) NOT NULL,
    price DECIMAL(10,2) NOT NULL,
    category VARCHAR(100),
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    status VARCHAR(50) DEFAULT 'active'
)
`,
		`
CREATE TABLE IF NOT EXISTS orders (
    id VARCHAR(255) PRIMARY KEY,
    user_id VARCHAR(255) NOT NULL,
    total_amount DECIMAL(10,2) NOT NULL,
    status VARCHAR(50) DEFAULT 'pending',
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (user_id) REFERENCES users(id)
)
`,
	}

	for _, stmt := range stmts {
		if _, err := d.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}

	return nil
}

func (d *DAL) CreateUser(ctx context.Context, u User) error {
	const sql = `
INSERT INTO users (id, username, email, status)
VALUES ($1, $2, $3, $4)
`

	_, err := d.db.Exec(ctx, sql, u.ID, u.Username, u.Email, u.Status)
	return err
}

func (d *DAL) GetUser(ctx context.Context, id string) (User, error) {
	const sql = `
SELECT id, username, email, created_at, status
FROM users
WHERE id = $1
`

	var u User
	err := d.db.QueryRow(ctx, sql, id).Scan(&u.ID, &u.Username, &u.Email, &u.CreatedAt, &u.Status)
	return u, err
}

func (d *DAL) UpdateUserStatus(ctx context.Context, id, status string) (int64, error) {
	const sql = `
UPDATE users
SET status = $1, updated_at = CURRENT_TIMESTAMP
WHERE id = $2
`

	tag, err := d.db.Exec(ctx, sql, status, id)
	return tag.RowsAffected(), err
}

func (d *DAL) DeleteUser(ctx context.Context, id string) (int64, error) {
	tag, err := d.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	return tag.RowsAffected(), err
}

func (d *DAL) InsertProduct(ctx context.Context, p Product) error {
	const sql = `
INSERT INTO products (id, name, price, category, status)
VALUES ($1, $2, $3, $4, $5)
`

	_, err := d.db.Exec(ctx, sql, p.ID, p.Name, p.Price, p.Category, "active")
	return err
}

func (d *DAL) InsertOrder(ctx context.Context, o Order) error {
	const sql = `
INSERT INTO orders (id, user_id, total_amount, status)
VALUES ($1, $2, $3, $4)
`

	_, err := d.db.Exec(ctx, sql, o.ID, o.UserID, o.TotalAmount, o.Status)
	return err
}

func (d *DAL) DeleteOrder(ctx context.Context, id string) (int64, error) {
	tag, err := d.db.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
	return tag.RowsAffected(), err
}

// Run performs the schema setup and CRUD round trip under the cooperative
// workflow deadline. A deadline abort is classified as ErrDeadlineExceeded.
func (d *DAL) Run(ctx context.Context) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	telemetry.SetExecutionTag(ctx, "database", "PostgreSQL")

	res, err := d.run(ctx)
	if err != nil {
		return res, classify(err)
	}

	return res, nil
}

func (d *DAL) run(ctx context.Context) (Result, error) {
	if err := service.Observe(ctx, "rds_ensure_schema", "users,products,orders", d.EnsureSchema); err != nil {
		return Result{}, err
	}

	userID, err := uuid.NewV4()
	if err != nil {
		return Result{}, err
	}

	user := User{
		ID:       userID.String(),
		Username: "user_" + userID.String()[:8],
		Email:    "user_" + userID.String()[:8] + "@example.com",
		Status:   "active",
	}

	telemetry.SetExecutionTag(ctx, "rds_user_id", user.ID)

	ops := 0

	if err := service.Observe(ctx, "rds_insert_user", "users", func(ctx context.Context) error {
		return d.CreateUser(ctx, user)
	}); err != nil {
		return Result{}, err
	}
	ops++

	if _, err := service.ObserveValue(ctx, "rds_select_user", "users", func(ctx context.Context) (User, error) {
		return d.GetUser(ctx, user.ID)
	}); err != nil {
		return Result{}, err
	}
	ops++

	if _, err := service.ObserveValue(ctx, "rds_update_user", "users", func(ctx context.Context) (int64, error) {
		return d.UpdateUserStatus(ctx, user.ID, "updated")
	}); err != nil {
		return Result{}, err
	}
	ops++

	productID, err := uuid.NewV4()
	if err != nil {
		return Result{}, err
	}

	if err := service.Observe(ctx, "rds_insert_product", "products", func(ctx context.Context) error {
		return d.InsertProduct(ctx, Product{
			ID:       productID.String(),
			Name:     "Product " + productID.String()[:8],
			Price:    99.99,
			Category: "Electronics",
		})
	}); err != nil {
		return Result{}, err
	}
	ops++

	orderID, err := uuid.NewV4()
	if err != nil {
		return Result{}, err
	}

	if err := service.Observe(ctx, "rds_insert_order", "orders", func(ctx context.Context) error {
		return d.InsertOrder(ctx, Order{
			ID:          orderID.String(),
			UserID:      user.ID,
			TotalAmount: 129.99,
			Status:      "pending",
		})
	}); err != nil {
		return Result{}, err
	}
	ops++

	// the order references the user, so it goes first
	if _, err := service.ObserveValue(ctx, "rds_delete_order", "orders", func(ctx context.Context) (int64, error) {
		return d.DeleteOrder(ctx, orderID.String())
	}); err != nil {
		return Result{}, err
	}
	ops++

	if _, err := service.ObserveValue(ctx, "rds_delete_user", "users", func(ctx context.Context) (int64, error) {
		return d.DeleteUser(ctx, user.ID)
	}); err != nil {
		return Result{}, err
	}
	ops++

	return Result{
		UserID:          user.ID,
		OperationsCount: ops,
	}, nil
}

func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.Join(ErrDeadlineExceeded, err)
	}

	return err
}
