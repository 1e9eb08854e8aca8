package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kirillkom/document-intelligence/internal/core/domain"
)

func newRepoWithMock(t *testing.T) (*RecordRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	repo := NewRecordRepository(db)
	repo.now = func() time.Time { return time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC) }
	return repo, mock, func() { _ = db.Close() }
}

func TestEnsureSchemaCreatesBothTablesUnderLock(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").WithArgs(int64(2026101901)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS invoices(.|\n)*CREATE TABLE IF NOT EXISTS purchase_orders").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	if err := repo.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestInsertInvoiceStampsCreatedAt(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectExec("INSERT INTO invoices").
		WithArgs("u@x.com", "a.pdf", "INV-1", "2024-01-01", "500", domain.MissingValue, repo.now()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.InsertInvoice(context.Background(), domain.InvoiceRecord{
		Email: "u@x.com", DocumentName: "a.pdf", InvoiceNumber: "INV-1", InvoiceDate: "2024-01-01",
		TotalAmount: "500", VendorName: domain.MissingValue,
	})
	if err != nil {
		t.Fatalf("InsertInvoice() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestInsertPurchaseOrderConnectionFailureIsTemporary(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectExec("INSERT INTO purchase_orders").
		WillReturnError(&pgconn.PgError{Code: "08006", Message: "connection failure"})

	err := repo.InsertPurchaseOrder(context.Background(), domain.PurchaseOrderRecord{Email: "u@x.com", DocumentName: "po.pdf"})
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected ErrTemporary, got %v", err)
	}
}

func TestListInvoicesScansRows(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"user_email", "document_name", "invoice_number", "invoice_date", "total_amount", "vendor_name", "created_at"}).
		AddRow("u@x.com", "a.pdf", "INV-1", "2024-01-01", "500", "Acme", created).
		AddRow("u@x.com", "b.pdf", "INV-2", "", "", "", created)
	mock.ExpectQuery("SELECT user_email, document_name(.|\n)*FROM invoices").WithArgs("u@x.com").WillReturnRows(rows)

	got, err := repo.ListInvoices(context.Background(), "u@x.com")
	if err != nil {
		t.Fatalf("ListInvoices() error = %v", err)
	}
	if len(got) != 2 || got[0].VendorName != "Acme" || got[1].InvoiceNumber != "INV-2" || !got[0].CreatedAt.Equal(created) {
		t.Fatalf("unexpected invoices %+v", got)
	}
}

func TestListPurchaseOrdersEmptyIsNonNil(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("FROM purchase_orders").WithArgs("u@x.com").
		WillReturnRows(sqlmock.NewRows([]string{"user_email", "document_name", "purchase_order_number", "order_date", "total_amount", "supplier_name", "created_at"}))

	got, err := repo.ListPurchaseOrders(context.Background(), "u@x.com")
	if err != nil {
		t.Fatalf("ListPurchaseOrders() error = %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
}

func TestListInvoicesPropagatesQueryError(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("FROM invoices").WillReturnError(sql.ErrConnDone)
	_, err := repo.ListInvoices(context.Background(), "u@x.com")
	if !domain.IsKind(err, domain.ErrTemporary) || !errors.Is(err, sql.ErrConnDone) {
		t.Fatalf("expected temporary connection error, got %v", err)
	}
}
