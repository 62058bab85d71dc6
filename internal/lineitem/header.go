package lineitem

import (
	"regexp"
	"strings"

	"github.com/Veraticus/product-normalizer/internal/model"
)

var headerDatePattern = regexp.MustCompile(`(\d{4}[-/]\d{2}[-/]\d{2}|\d{2}[-/]\d{2}[-/]\d{4})`)

// ParseInvoiceHeader splits "FC - 0001-12345678 - 2024-01-15 - PROVEEDOR SA - OC001"
// on spaced hyphens. Anything after the supplier is the purchase order.
func ParseInvoiceHeader(s string) model.InvoiceHeader {
	s = strings.TrimSpace(s)
	if s == "" {
		return model.InvoiceHeader{}
	}

	parts := strings.Split(s, " - ")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	var h model.InvoiceHeader
	h.Type = parts[0]
	if len(parts) > 1 {
		h.Number = parts[1]
	}
	if len(parts) > 2 {
		h.Date = headerDatePattern.FindString(parts[2])
	}
	if len(parts) > 3 {
		h.Supplier = parts[3]
	}
	if len(parts) > 4 {
		h.PurchaseOrder = strings.Join(parts[4:], " - ")
	}
	return h
}
