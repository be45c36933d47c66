package menu

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/trezcool/canteen/core"
)

var (
	priceTag  = "price"
	priceText = "price must be greater than 0"

	maxPrice = decimal.NewFromInt(100000)
)

// InitValidators registers the menu validators & their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	validate.RegisterStructValidation(newItemStructValidation, NewItem{})
	validate.RegisterStructValidation(updateItemStructValidation, UpdateItem{})
	core.RegisterCustomTranslation(validate, translator, priceTag, priceText)
}

func validPrice(p decimal.Decimal) bool {
	return p.IsPositive() && p.LessThan(maxPrice) && p.Exponent() >= -2
}

func newItemStructValidation(sl validator.StructLevel) {
	ni := sl.Current().Interface().(NewItem)
	if !validPrice(ni.Price) {
		sl.ReportError(ni.Price, "price", "Price", priceTag, "")
	}
}

func updateItemStructValidation(sl validator.StructLevel) {
	ui := sl.Current().Interface().(UpdateItem)
	if ui.Price != nil && !validPrice(*ui.Price) {
		sl.ReportError(*ui.Price, "price", "Price", priceTag, "")
	}
}
