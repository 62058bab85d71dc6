package model

import "github.com/shopspring/decimal"

// LineItem is one product row extracted from a supplier invoice.
type LineItem struct {
	Fields             map[string]string
	Invoice            InvoiceHeader
	Description        string
	Quantity           decimal.Decimal
	UnitPrice          decimal.Decimal
	Subtotal           decimal.Decimal
	Row                int
	DescriptionMissing bool
	Salvageable        bool
}

// Volume is the quantity used to weight the row in reports. Rows without a
// quantity count as one unit.
func (li LineItem) Volume() decimal.Decimal {
	if li.Quantity.IsZero() {
		return decimal.NewFromInt(1)
	}
	return li.Quantity
}

// InvoiceHeader holds the invoice identification packed in the export's
// leading "Tipo - Numero - Fecha - Proveedor - OC" column.
type InvoiceHeader struct {
	Type          string
	Number        string
	Date          string
	Supplier      string
	PurchaseOrder string
}

// IsZero reports whether no header field was parsed.
func (h InvoiceHeader) IsZero() bool {
	return h == InvoiceHeader{}
}

// NormalizedItem is a line item with its match result attached.
type NormalizedItem struct {
	LineItem
	Result MatchResult
}

// ClusteredItem is a line item with its family master at every hierarchy level.
type ClusteredItem struct {
	LineItem
	Families []string
}
