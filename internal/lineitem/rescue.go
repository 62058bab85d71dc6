package lineitem

import (
	"github.com/Veraticus/product-normalizer/internal/model"
)

// Rescue fills in the one missing value among quantity, unit price and
// subtotal. Zero counts as missing. With two or more missing the item is
// marked unsalvageable and left unchanged.
func Rescue(item model.LineItem) model.LineItem {
	missing := 0
	for _, v := range []bool{item.Quantity.IsZero(), item.UnitPrice.IsZero(), item.Subtotal.IsZero()} {
		if v {
			missing++
		}
	}

	if missing >= 2 {
		item.Salvageable = false
		return item
	}

	switch {
	case item.Quantity.IsZero():
		item.Quantity = item.Subtotal.Div(item.UnitPrice)
	case item.UnitPrice.IsZero():
		item.UnitPrice = item.Subtotal.Div(item.Quantity)
	case item.Subtotal.IsZero():
		item.Subtotal = item.Quantity.Mul(item.UnitPrice)
	}
	item.Salvageable = true
	return item
}

// RescueAll applies Rescue to every item and splits the result.
func RescueAll(items []model.LineItem) (salvageable, unsalvageable []model.LineItem) {
	for _, item := range items {
		item = Rescue(item)
		if item.Salvageable {
			salvageable = append(salvageable, item)
		} else {
			unsalvageable = append(unsalvageable, item)
		}
	}
	return salvageable, unsalvageable
}
