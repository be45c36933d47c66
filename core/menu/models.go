package menu

import (
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/trezcool/canteen/core"
	"github.com/trezcool/canteen/core/cart"
)

// Item is a menu item.
type Item struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Price        decimal.Decimal `json:"price"`
	ImageURL     string          `json:"image_url"`
	CategoryID   string          `json:"category_id,omitempty"`
	IsVegetarian bool            `json:"is_vegetarian"`
	IsAvailable  bool            `json:"is_available"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// LineItem returns a cart line for quantity units of the item.
func (it Item) LineItem(quantity int, instructions string, customizations ...string) cart.LineItem {
	return cart.LineItem{
		ItemID:              it.ID,
		Name:                it.Name,
		UnitPrice:           it.Price,
		Quantity:            quantity,
		ImageURL:            it.ImageURL,
		SpecialInstructions: instructions,
		Customizations:      customizations,
	}
}

type Category struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Position int    `json:"position"`
}

type Favorite struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	ItemID string `json:"item_id"`
	Item   *Item  `json:"item,omitempty"`
}

type NewItem struct {
	Name         string          `json:"name" validate:"required,max=120"`
	Description  string          `json:"description" validate:"max=1000"`
	Price        decimal.Decimal `json:"price"`
	CategoryID   string          `json:"category_id" validate:"omitempty,uuid"`
	IsVegetarian bool            `json:"is_vegetarian"`
	IsAvailable  *bool           `json:"is_available"`
}

func (ni *NewItem) Validate(validate *validator.Validate) error {
	ni.Name = core.CleanString(ni.Name)
	ni.Description = core.CleanString(ni.Description)
	ni.CategoryID = core.CleanString(ni.CategoryID)
	return validate.Struct(ni)
}

// UpdateItem defines what may be changed on an existing Item. Empty fields are left alone.
type UpdateItem struct {
	Name         string           `json:"name" validate:"max=120"`
	Description  *string          `json:"description" validate:"omitempty,max=1000"`
	Price        *decimal.Decimal `json:"price"`
	CategoryID   *string          `json:"category_id" validate:"omitempty"`
	IsVegetarian *bool            `json:"is_vegetarian"`
	IsAvailable  *bool            `json:"is_available"`
}

func (ui *UpdateItem) Validate(validate *validator.Validate) error {
	ui.Name = core.CleanString(ui.Name)
	return validate.Struct(ui)
}

type NewCategory struct {
	Name     string `json:"name" validate:"required,max=80"`
	Position int    `json:"position" validate:"min=0"`
}

func (nc *NewCategory) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	return validate.Struct(nc)
}

// Sort keys accepted by Filter.Sort; a leading "-" sorts descending.
const (
	SortName  = "name"
	SortPrice = "price"
)

// Filter narrows down a menu on the client.
type Filter struct {
	Search         string `query:"search"`
	CategoryID     string `query:"category"`
	VegetarianOnly bool   `query:"vegetarian"`
	AvailableOnly  bool   `query:"available"`
	Sort           string `query:"sort"`
}

// Apply returns the items matching f, sorted by f.Sort (menu order when empty).
// items is left untouched.
func Apply(items []Item, f Filter) []Item {
	search := strings.ToLower(core.CleanString(f.Search))
	res := make([]Item, 0, len(items))
	for _, it := range items {
		if f.CategoryID != "" && it.CategoryID != f.CategoryID {
			continue
		}
		if f.VegetarianOnly && !it.IsVegetarian {
			continue
		}
		if f.AvailableOnly && !it.IsAvailable {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(it.Name), search) &&
			!strings.Contains(strings.ToLower(it.Description), search) {
			continue
		}
		res = append(res, it)
	}

	field, desc := f.Sort, false
	if strings.HasPrefix(field, "-") {
		field, desc = field[1:], true
	}
	var less func(a, b Item) bool
	switch field {
	case SortName:
		less = func(a, b Item) bool { return strings.ToLower(a.Name) < strings.ToLower(b.Name) }
	case SortPrice:
		less = func(a, b Item) bool { return a.Price.LessThan(b.Price) }
	default:
		return res
	}
	sort.SliceStable(res, func(i, j int) bool {
		if desc {
			return less(res[j], res[i])
		}
		return less(res[i], res[j])
	})
	return res
}
