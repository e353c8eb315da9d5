package catalog

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/drstein77/hostfront/internal/models"
)

var priceSheetHeader = []string{"id", "title", "category", "term", "list", "sale", "currency"}

// ExportCSV writes a price sheet with one row per product.
func ExportCSV(w io.Writer, products []models.Product) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(priceSheetHeader); err != nil {
		return err
	}
	for _, p := range products {
		row := []string{
			p.ID,
			p.Title,
			p.Category,
			p.Term,
			fmt.Sprintf("%d.%02d", p.ListPrice.Cents/100, p.ListPrice.Cents%100),
			fmt.Sprintf("%d.%02d", p.SalePrice.Cents/100, p.SalePrice.Cents%100),
			p.SalePrice.Currency,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
