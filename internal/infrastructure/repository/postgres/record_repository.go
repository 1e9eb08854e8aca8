package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/document-intelligence/internal/core/domain"
)

// RecordRepository stores structured invoice and purchase order fields.
type RecordRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewRecordRepository(db *sql.DB) *RecordRepository {
	return &RecordRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *RecordRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101901)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS invoices (
	id BIGSERIAL PRIMARY KEY,
	user_email TEXT NOT NULL,
	document_name TEXT NOT NULL,
	invoice_number TEXT,
	invoice_date TEXT,
	total_amount TEXT,
	vendor_name TEXT,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_invoices_user_email ON invoices(user_email);

CREATE TABLE IF NOT EXISTS purchase_orders (
	id BIGSERIAL PRIMARY KEY,
	user_email TEXT NOT NULL,
	document_name TEXT NOT NULL,
	purchase_order_number TEXT,
	order_date TEXT,
	total_amount TEXT,
	supplier_name TEXT,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_purchase_orders_user_email ON purchase_orders(user_email);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *RecordRepository) InsertInvoice(ctx context.Context, rec domain.InvoiceRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = r.now()
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO invoices (
	user_email, document_name, invoice_number, invoice_date, total_amount, vendor_name, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7)
`,
		rec.Email, rec.DocumentName, rec.InvoiceNumber, rec.InvoiceDate, rec.TotalAmount, rec.VendorName, rec.CreatedAt,
	)
	if err != nil {
		return wrapDBError("insert invoice", err)
	}
	return nil
}

func (r *RecordRepository) InsertPurchaseOrder(ctx context.Context, rec domain.PurchaseOrderRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = r.now()
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO purchase_orders (
	user_email, document_name, purchase_order_number, order_date, total_amount, supplier_name, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7)
`,
		rec.Email, rec.DocumentName, rec.PurchaseOrderNumber, rec.OrderDate, rec.TotalAmount, rec.SupplierName, rec.CreatedAt,
	)
	if err != nil {
		return wrapDBError("insert purchase order", err)
	}
	return nil
}

func (r *RecordRepository) ListInvoices(ctx context.Context, email string) ([]domain.InvoiceRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT user_email, document_name,
	COALESCE(invoice_number, ''), COALESCE(invoice_date, ''), COALESCE(total_amount, ''), COALESCE(vendor_name, ''),
	created_at
FROM invoices
WHERE user_email = $1
ORDER BY created_at ASC, id ASC
`, email)
	if err != nil {
		return nil, wrapDBError("list invoices", err)
	}
	defer rows.Close()

	out := make([]domain.InvoiceRecord, 0)
	for rows.Next() {
		var rec domain.InvoiceRecord
		if err := rows.Scan(
			&rec.Email, &rec.DocumentName, &rec.InvoiceNumber, &rec.InvoiceDate, &rec.TotalAmount, &rec.VendorName, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBError("iterate invoices", err)
	}
	return out, nil
}

func (r *RecordRepository) ListPurchaseOrders(ctx context.Context, email string) ([]domain.PurchaseOrderRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT user_email, document_name,
	COALESCE(purchase_order_number, ''), COALESCE(order_date, ''), COALESCE(total_amount, ''), COALESCE(supplier_name, ''),
	created_at
FROM purchase_orders
WHERE user_email = $1
ORDER BY created_at ASC, id ASC
`, email)
	if err != nil {
		return nil, wrapDBError("list purchase orders", err)
	}
	defer rows.Close()

	out := make([]domain.PurchaseOrderRecord, 0)
	for rows.Next() {
		var rec domain.PurchaseOrderRecord
		if err := rows.Scan(
			&rec.Email, &rec.DocumentName, &rec.PurchaseOrderNumber, &rec.OrderDate, &rec.TotalAmount, &rec.SupplierName, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan purchase order: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBError("iterate purchase orders", err)
	}
	return out, nil
}

// wrapDBError marks connection level failures as temporary so callers can
// tell them apart from constraint or syntax errors.
func wrapDBError(operation string, err error) error {
	var netErr net.Error
	var pgErr *pgconn.PgError
	switch {
	case errors.Is(err, sql.ErrConnDone) || errors.Is(err, context.DeadlineExceeded) || errors.As(err, &netErr):
		return domain.WrapError(domain.ErrTemporary, operation, err)
	case errors.As(err, &pgErr) && (pgErr.Code == "57P01" || pgErr.Code == "53300" || strings.HasPrefix(pgErr.Code, "08")):
		return domain.WrapError(domain.ErrTemporary, operation, err)
	default:
		return fmt.Errorf("%s: %w", operation, err)
	}
}
