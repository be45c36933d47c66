package inmemdb

import (
	"context"

	"github.com/google/uuid"

	"github.com/trezcool/canteen/core/cart"
)

type cartRepository struct {
	db *DB
}

var _ cart.RemoteStore = (*cartRepository)(nil)

// NewCartRepository returns the remote cart store. Lines are joined with the menu items
// for display fields; lines whose item is not on the menu are not listed.
func NewCartRepository(db *DB) cart.RemoteStore {
	return &cartRepository{db: db}
}

func (row *cartRow) matches(userID string, key cart.Key) bool {
	return row.userID == userID &&
		row.itemID == key.ItemID &&
		row.instructions == key.SpecialInstructions &&
		row.customizations == cart.CanonicalCustomizations(key.Customizations())
}

func (repo *cartRepository) ListLines(_ context.Context, userID string) ([]cart.LineItem, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	lines := make([]cart.LineItem, 0)
	for _, row := range repo.db.cart {
		if row.userID != userID {
			continue
		}
		it, ok := repo.db.items[row.itemID]
		if !ok {
			continue
		}
		li := cart.LineItem{
			ItemID:              row.itemID,
			Name:                it.Name,
			UnitPrice:           it.Price,
			Quantity:            row.quantity,
			ImageURL:            it.ImageURL,
			SpecialInstructions: row.instructions,
		}
		li.Customizations, _ = cart.ParseCustomizations(row.customizations)
		lines = append(lines, li)
	}
	return lines, nil
}

func (repo *cartRepository) FindLine(_ context.Context, userID string, key cart.Key) (cart.RemoteLine, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, row := range repo.db.cart {
		if row.matches(userID, key) {
			return cart.RemoteLine{ID: row.id, Quantity: row.quantity}, nil
		}
	}
	return cart.RemoteLine{}, cart.ErrLineNotFound
}

func (repo *cartRepository) InsertLine(_ context.Context, userID string, item cart.LineItem) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	repo.db.cart = append(repo.db.cart, &cartRow{
		id:             uuid.New().String(),
		userID:         userID,
		itemID:         item.ItemID,
		quantity:       item.Quantity,
		instructions:   item.SpecialInstructions,
		customizations: cart.CanonicalCustomizations(item.Customizations),
	})
	return nil
}

func (repo *cartRepository) UpdateLineQuantity(_ context.Context, lineID string, quantity int) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, row := range repo.db.cart {
		if row.id == lineID {
			row.quantity = quantity
			return nil
		}
	}
	return cart.ErrLineNotFound
}

func (repo *cartRepository) DeleteLine(_ context.Context, userID string, key cart.Key) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	rows := repo.db.cart[:0]
	for _, row := range repo.db.cart {
		if !row.matches(userID, key) {
			rows = append(rows, row)
		}
	}
	repo.db.cart = rows
	return nil
}

func (repo *cartRepository) DeleteAll(_ context.Context, userID string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	rows := repo.db.cart[:0]
	for _, row := range repo.db.cart {
		if row.userID != userID {
			rows = append(rows, row)
		}
	}
	repo.db.cart = rows
	return nil
}
