package xlsx

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/document-intelligence/internal/core/domain"
)

const (
	InvoiceSheet       = "Invoices"
	PurchaseOrderSheet = "Purchase Orders"
)

var (
	invoiceHeaders       = []string{"Document", "Invoice Number", "Invoice Date", "Total Amount", "Vendor Name", "Created At"}
	purchaseOrderHeaders = []string{"Document", "Purchase Order Number", "Order Date", "Total Amount", "Supplier Name", "Created At"}
)

// Exporter renders a record set as an XLSX workbook with one sheet per
// document type.
type Exporter struct{}

func NewExporter() *Exporter {
	return &Exporter{}
}

func (e *Exporter) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

func (e *Exporter) FileExtension() string {
	return ".xlsx"
}

func (e *Exporter) Export(set domain.RecordSet) ([]byte, error) {
	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	if err := f.SetSheetName("Sheet1", InvoiceSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(PurchaseOrderSheet); err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}

	invoiceRows := make([][]any, 0, len(set.Invoices))
	for _, r := range set.Invoices {
		invoiceRows = append(invoiceRows, []any{r.DocumentName, r.InvoiceNumber, r.InvoiceDate, r.TotalAmount, r.VendorName, formatTime(r.CreatedAt)})
	}
	if err := writeSheet(f, InvoiceSheet, invoiceHeaders, invoiceRows); err != nil {
		return nil, err
	}

	orderRows := make([][]any, 0, len(set.PurchaseOrders))
	for _, r := range set.PurchaseOrders {
		orderRows = append(orderRows, []any{r.DocumentName, r.PurchaseOrderNumber, r.OrderDate, r.TotalAmount, r.SupplierName, formatTime(r.CreatedAt)})
	}
	if err := writeSheet(f, PurchaseOrderSheet, purchaseOrderHeaders, orderRows); err != nil {
		return nil, err
	}

	f.SetActiveSheet(0)
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSheet(f *excelize.File, sheet string, headers []string, rows [][]any) error {
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return fmt.Errorf("write %s header: %w", sheet, err)
		}
	}
	for r, row := range rows {
		for c, v := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return fmt.Errorf("write %s row: %w", sheet, err)
			}
		}
	}
	_ = f.SetColWidth(sheet, "A", "A", 32)
	_ = f.SetColWidth(sheet, "B", "E", 22)
	_ = f.SetColWidth(sheet, "F", "F", 22)
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
