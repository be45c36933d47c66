package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/canteen/core/cart"
)

const cartTable = "cart_items"

type cartLineRow struct {
	ItemID              string          `db:"menu_item_id"`
	Quantity            int             `db:"quantity"`
	SpecialInstructions string          `db:"special_instructions"`
	Customizations      string          `db:"customizations"`
	Name                string          `db:"name"`
	Price               decimal.Decimal `db:"price"`
	ImageURL            string          `db:"image_url"`
}

type cartRepository struct {
	db sqlx.ExtContext
}

var _ cart.RemoteStore = (*cartRepository)(nil) // interface compliance check

// NewCartRepository returns the remote cart store.
// Every row lookup matches on (user_id, menu_item_id, special_instructions, customizations).
func NewCartRepository(db sqlx.ExtContext) cart.RemoteStore {
	return &cartRepository{db: db}
}

func keyEq(userID string, key cart.Key) sq.Eq {
	return sq.Eq{
		"user_id":              userID,
		"menu_item_id":         key.ItemID,
		"special_instructions": key.SpecialInstructions,
		"customizations":       cart.CanonicalCustomizations(key.Customizations()),
	}
}

func (repo *cartRepository) ListLines(ctx context.Context, userID string) ([]cart.LineItem, error) {
	qb := psql.Select(
		"ci.menu_item_id", "ci.quantity", "ci.special_instructions", "ci.customizations",
		"i.name", "i.price", "i.image_url",
	).
		From(cartTable + " ci").
		Join(itemsTable + " i ON i.id = ci.menu_item_id").
		Where(sq.Eq{"ci.user_id": userID}).
		OrderBy("ci.updated_at ASC", "ci.id ASC")

	var rows []cartLineRow
	if err := selectAll(ctx, repo.db, &rows, qb); err != nil {
		return nil, errors.Wrap(err, "listing cart lines")
	}
	lines := make([]cart.LineItem, 0, len(rows))
	for _, r := range rows {
		custs, err := cart.ParseCustomizations(r.Customizations)
		if err != nil {
			return nil, errors.Wrapf(err, "decoding customizations of item %s", r.ItemID)
		}
		lines = append(lines, cart.LineItem{
			ItemID:              r.ItemID,
			Name:                r.Name,
			UnitPrice:           r.Price,
			Quantity:            r.Quantity,
			ImageURL:            r.ImageURL,
			SpecialInstructions: r.SpecialInstructions,
			Customizations:      custs,
		})
	}
	return lines, nil
}

func (repo *cartRepository) FindLine(ctx context.Context, userID string, key cart.Key) (cart.RemoteLine, error) {
	if _, err := uuid.Parse(key.ItemID); err != nil {
		return cart.RemoteLine{}, cart.ErrLineNotFound
	}
	var line cart.RemoteLine
	qb := psql.Select("id", "quantity").From(cartTable).Where(keyEq(userID, key)).Limit(1)
	if err := get(ctx, repo.db, &line, qb); err != nil {
		return cart.RemoteLine{}, trapNoRowsErr(err, cart.ErrLineNotFound, "finding cart line")
	}
	return line, nil
}

func (repo *cartRepository) InsertLine(ctx context.Context, userID string, item cart.LineItem) error {
	qb := psql.Insert(cartTable).
		Columns("id", "user_id", "menu_item_id", "quantity", "special_instructions", "customizations", "updated_at").
		Values(
			uuid.New().String(), userID, item.ItemID, item.Quantity, item.SpecialInstructions,
			cart.CanonicalCustomizations(item.Customizations), time.Now().UTC(),
		)
	if _, err := exec(ctx, repo.db, qb); err != nil {
		return errors.Wrap(err, "inserting cart line")
	}
	return nil
}

func (repo *cartRepository) UpdateLineQuantity(ctx context.Context, lineID string, quantity int) error {
	if _, err := uuid.Parse(lineID); err != nil {
		return cart.ErrLineNotFound
	}
	qb := psql.Update(cartTable).
		Set("quantity", quantity).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"id": lineID})
	if err := execOne(ctx, repo.db, qb, cart.ErrLineNotFound); err != nil {
		if err == cart.ErrLineNotFound {
			return err
		}
		return errors.Wrap(err, "updating cart line")
	}
	return nil
}

func (repo *cartRepository) DeleteLine(ctx context.Context, userID string, key cart.Key) error {
	if _, err := uuid.Parse(key.ItemID); err != nil {
		return nil
	}
	if _, err := exec(ctx, repo.db, psql.Delete(cartTable).Where(keyEq(userID, key))); err != nil {
		return errors.Wrap(err, "deleting cart line")
	}
	return nil
}

func (repo *cartRepository) DeleteAll(ctx context.Context, userID string) error {
	if _, err := exec(ctx, repo.db, psql.Delete(cartTable).Where(sq.Eq{"user_id": userID})); err != nil {
		return errors.Wrap(err, "deleting cart")
	}
	return nil
}
