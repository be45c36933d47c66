package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/canteen/core/menu"
)

const (
	itemsTable      = "menu_items"
	categoriesTable = "categories"
	favoritesTable  = "favorites"
)

var itemColumns = []string{
	"id", "name", "description", "price", "image_url", "category_id",
	"is_vegetarian", "is_available", "created_at", "updated_at",
}

type itemRow struct {
	ID           string          `db:"id"`
	Name         string          `db:"name"`
	Description  string          `db:"description"`
	Price        decimal.Decimal `db:"price"`
	ImageURL     string          `db:"image_url"`
	CategoryID   null.String     `db:"category_id"`
	IsVegetarian bool            `db:"is_vegetarian"`
	IsAvailable  bool            `db:"is_available"`
	CreatedAt    time.Time       `db:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at"`
}

func toItemRow(it menu.Item) itemRow {
	return itemRow{
		ID:           it.ID,
		Name:         it.Name,
		Description:  it.Description,
		Price:        it.Price,
		ImageURL:     it.ImageURL,
		CategoryID:   null.NewString(it.CategoryID, it.CategoryID != ""),
		IsVegetarian: it.IsVegetarian,
		IsAvailable:  it.IsAvailable,
		CreatedAt:    it.CreatedAt.UTC(),
		UpdatedAt:    it.UpdatedAt.UTC(),
	}
}

func (r itemRow) item() menu.Item {
	return menu.Item{
		ID:           r.ID,
		Name:         r.Name,
		Description:  r.Description,
		Price:        r.Price,
		ImageURL:     r.ImageURL,
		CategoryID:   r.CategoryID.String,
		IsVegetarian: r.IsVegetarian,
		IsAvailable:  r.IsAvailable,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
}

type favoriteRow struct {
	FavID  string `db:"fav_id"`
	UserID string `db:"user_id"`
	ItemID string `db:"menu_item_id"`
	itemRow
}

type menuRepository struct {
	db sqlx.ExtContext
}

var _ menu.Repository = (*menuRepository)(nil) // interface compliance check

func NewMenuRepository(db sqlx.ExtContext) menu.Repository {
	return &menuRepository{db: db}
}

func (repo *menuRepository) CreateItem(ctx context.Context, it menu.Item) (menu.Item, error) {
	it.ID = uuid.New().String()
	r := toItemRow(it)
	qb := psql.Insert(itemsTable).Columns(itemColumns...).Values(
		r.ID, r.Name, r.Description, r.Price, r.ImageURL, r.CategoryID,
		r.IsVegetarian, r.IsAvailable, r.CreatedAt, r.UpdatedAt,
	)
	if _, err := exec(ctx, repo.db, qb); err != nil {
		return menu.Item{}, errors.Wrap(err, "inserting menu item")
	}
	return r.item(), nil
}

func (repo *menuRepository) GetItemByID(ctx context.Context, id string) (menu.Item, error) {
	if _, err := uuid.Parse(id); err != nil {
		return menu.Item{}, menu.ErrNotFound
	}
	var r itemRow
	if err := get(ctx, repo.db, &r, psql.Select(itemColumns...).From(itemsTable).Where(sq.Eq{"id": id})); err != nil {
		return menu.Item{}, trapNoRowsErr(err, menu.ErrNotFound, "finding menu item by ID")
	}
	return r.item(), nil
}

func (repo *menuRepository) ListItems(ctx context.Context) ([]menu.Item, error) {
	cols := make([]string, 0, len(itemColumns))
	for _, c := range itemColumns {
		cols = append(cols, "i."+c)
	}
	qb := psql.Select(cols...).
		From(itemsTable + " i").
		LeftJoin(categoriesTable + " c ON c.id = i.category_id").
		OrderBy("c.position ASC NULLS LAST", "lower(i.name) ASC")

	var rows []itemRow
	if err := selectAll(ctx, repo.db, &rows, qb); err != nil {
		return nil, errors.Wrap(err, "listing menu items")
	}
	items := make([]menu.Item, 0, len(rows))
	for _, r := range rows {
		items = append(items, r.item())
	}
	return items, nil
}

func (repo *menuRepository) UpdateItem(ctx context.Context, it menu.Item) (menu.Item, error) {
	if _, err := uuid.Parse(it.ID); err != nil {
		return menu.Item{}, menu.ErrNotFound
	}
	r := toItemRow(it)
	qb := psql.Update(itemsTable).
		SetMap(map[string]interface{}{
			"name":          r.Name,
			"description":   r.Description,
			"price":         r.Price,
			"image_url":     r.ImageURL,
			"category_id":   r.CategoryID,
			"is_vegetarian": r.IsVegetarian,
			"is_available":  r.IsAvailable,
			"updated_at":    r.UpdatedAt,
		}).
		Where(sq.Eq{"id": r.ID})
	if err := execOne(ctx, repo.db, qb, menu.ErrNotFound); err != nil {
		if err == menu.ErrNotFound {
			return menu.Item{}, err
		}
		return menu.Item{}, errors.Wrap(err, "updating menu item")
	}
	return r.item(), nil
}

func (repo *menuRepository) DeleteItem(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return menu.ErrNotFound
	}
	if err := execOne(ctx, repo.db, psql.Delete(itemsTable).Where(sq.Eq{"id": id}), menu.ErrNotFound); err != nil {
		if err == menu.ErrNotFound {
			return err
		}
		return errors.Wrap(err, "deleting menu item")
	}
	return nil
}

func (repo *menuRepository) CreateCategory(ctx context.Context, cat menu.Category) (menu.Category, error) {
	cat.ID = uuid.New().String()
	qb := psql.Insert(categoriesTable).Columns("id", "name", "position").Values(cat.ID, cat.Name, cat.Position)
	if _, err := exec(ctx, repo.db, qb); err != nil {
		if isUniqueViolation(err) {
			return menu.Category{}, menu.ErrCategoryExists
		}
		return menu.Category{}, errors.Wrap(err, "inserting category")
	}
	return cat, nil
}

func (repo *menuRepository) GetCategoryByID(ctx context.Context, id string) (menu.Category, error) {
	if _, err := uuid.Parse(id); err != nil {
		return menu.Category{}, menu.ErrCategoryNotFound
	}
	var cat menu.Category
	qb := psql.Select("id", "name", "position").From(categoriesTable).Where(sq.Eq{"id": id})
	if err := get(ctx, repo.db, &cat, qb); err != nil {
		return menu.Category{}, trapNoRowsErr(err, menu.ErrCategoryNotFound, "finding category by ID")
	}
	return cat, nil
}

func (repo *menuRepository) ListCategories(ctx context.Context) ([]menu.Category, error) {
	cats := make([]menu.Category, 0)
	qb := psql.Select("id", "name", "position").From(categoriesTable).OrderBy("position ASC", "name ASC")
	if err := selectAll(ctx, repo.db, &cats, qb); err != nil {
		return nil, errors.Wrap(err, "listing categories")
	}
	return cats, nil
}

func (repo *menuRepository) AddFavorite(ctx context.Context, fav menu.Favorite) (menu.Favorite, error) {
	fav.ID = uuid.New().String()
	fav.Item = nil
	qb := psql.Insert(favoritesTable).Columns("id", "user_id", "menu_item_id").Values(fav.ID, fav.UserID, fav.ItemID)
	if _, err := exec(ctx, repo.db, qb); err != nil {
		if isUniqueViolation(err) {
			return menu.Favorite{}, menu.ErrFavoriteExists
		}
		return menu.Favorite{}, errors.Wrap(err, "inserting favorite")
	}
	return fav, nil
}

func (repo *menuRepository) RemoveFavorite(ctx context.Context, userID, itemID string) error {
	if _, err := uuid.Parse(itemID); err != nil {
		return nil
	}
	qb := psql.Delete(favoritesTable).Where(sq.Eq{"user_id": userID, "menu_item_id": itemID})
	if _, err := exec(ctx, repo.db, qb); err != nil {
		return errors.Wrap(err, "deleting favorite")
	}
	return nil
}

func (repo *menuRepository) ListFavorites(ctx context.Context, userID string) ([]menu.Favorite, error) {
	cols := []string{"f.id AS fav_id", "f.user_id", "f.menu_item_id"}
	for _, c := range itemColumns {
		cols = append(cols, "i."+c)
	}
	qb := psql.Select(cols...).
		From(favoritesTable + " f").
		Join(itemsTable + " i ON i.id = f.menu_item_id").
		Where(sq.Eq{"f.user_id": userID}).
		OrderBy("lower(i.name) ASC")

	var rows []favoriteRow
	if err := selectAll(ctx, repo.db, &rows, qb); err != nil {
		return nil, errors.Wrap(err, "listing favorites")
	}
	favs := make([]menu.Favorite, 0, len(rows))
	for _, r := range rows {
		it := r.itemRow.item()
		favs = append(favs, menu.Favorite{ID: r.FavID, UserID: r.UserID, ItemID: r.ItemID, Item: &it})
	}
	return favs, nil
}
