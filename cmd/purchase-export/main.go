package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/synerge/order101-backend/config"
	"github.com/synerge/order101-backend/models"
	"github.com/xuri/excelize/v2"
)

// Exports one purchase order as an XLSX order sheet for the supplier.
func main() {
	purchaseID := flag.Int("purchase-id", 0, "Purchase id to export (required).")
	outFile := flag.String("out", "", "Output file. Defaults to <po_number>.xlsx.")
	flag.Parse()

	if *purchaseID <= 0 {
		fmt.Fprintln(os.Stderr, "usage: purchase-export -purchase-id <id> [-out file.xlsx]")
		os.Exit(1)
	}

	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil)")
		os.Exit(1)
	}

	purchase, history, err := models.GetPurchaseDetail(ctx, *purchaseID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fetch purchase %d: %v\n", *purchaseID, err)
		os.Exit(1)
	}

	filename := *outFile
	if filename == "" {
		filename = purchase.PoNumber + ".xlsx"
	}

	f := excelize.NewFile()
	sheet := "Sheet1"
	if _, err := f.NewSheet(sheet); err != nil {
		fmt.Fprintf(os.Stderr, "create sheet: %v\n", err)
		os.Exit(1)
	}

	supplierName := fmt.Sprintf("#%d", purchase.SupplierId)
	if supplier, err := models.GetSupplier(ctx, purchase.SupplierId); err == nil {
		supplierName = supplier.Name
	}

	f.SetCellValue(sheet, "A1", "PoNumber")
	f.SetCellValue(sheet, "B1", purchase.PoNumber)
	f.SetCellValue(sheet, "A2", "Supplier")
	f.SetCellValue(sheet, "B2", supplierName)
	f.SetCellValue(sheet, "A3", "WarehouseId")
	f.SetCellValue(sheet, "B3", purchase.WarehouseId)
	f.SetCellValue(sheet, "A4", "Status")
	f.SetCellValue(sheet, "B4", string(purchase.OrderStatus))
	f.SetCellValue(sheet, "A5", "TotalAmount")
	f.SetCellValue(sheet, "B5", purchase.OrderTotalAmount.String())

	// Line headers
	f.SetCellValue(sheet, "A7", "ProductId")
	f.SetCellValue(sheet, "B7", "Product")
	f.SetCellValue(sheet, "C7", "OrderQty")
	f.SetCellValue(sheet, "D7", "UnitPrice")
	f.SetCellValue(sheet, "E7", "Deadline")

	for i, line := range purchase.Details {
		row := i + 8
		productName := ""
		if product, err := models.GetProduct(ctx, line.ProductId); err == nil {
			productName = product.Name
		}
		f.SetCellValue(sheet, "A"+fmt.Sprint(row), line.ProductId)
		f.SetCellValue(sheet, "B"+fmt.Sprint(row), productName)
		f.SetCellValue(sheet, "C"+fmt.Sprint(row), line.OrderQty)
		f.SetCellValue(sheet, "D"+fmt.Sprint(row), line.UnitPrice.String())
		if line.Deadline != nil {
			f.SetCellValue(sheet, "E"+fmt.Sprint(row), line.Deadline.Format("2006-01-02"))
		}
	}

	// Audit trail on a second sheet.
	audit := "History"
	if _, err := f.NewSheet(audit); err != nil {
		fmt.Fprintf(os.Stderr, "create sheet: %v\n", err)
		os.Exit(1)
	}
	f.SetCellValue(audit, "A1", "ProductId")
	f.SetCellValue(audit, "B1", "BeforeQty")
	f.SetCellValue(audit, "C1", "AfterQty")
	f.SetCellValue(audit, "D1", "ChangedBy")
	f.SetCellValue(audit, "E1", "ChangedAt")
	for i, h := range history {
		row := i + 2
		f.SetCellValue(audit, "A"+fmt.Sprint(row), h.ProductId)
		f.SetCellValue(audit, "B"+fmt.Sprint(row), h.BeforeQty)
		f.SetCellValue(audit, "C"+fmt.Sprint(row), h.AfterQty)
		f.SetCellValue(audit, "D"+fmt.Sprint(row), h.ChangedBy)
		f.SetCellValue(audit, "E"+fmt.Sprint(row), h.CreatedAt.Format("2006-01-02 15:04:05"))
	}

	if err := f.SaveAs(filename); err != nil {
		fmt.Fprintf(os.Stderr, "write %s: %v\n", filename, err)
		os.Exit(1)
	}
	fmt.Printf("exported %s (%d lines, %d history rows)\n", filename, len(purchase.Details), len(history))
}
