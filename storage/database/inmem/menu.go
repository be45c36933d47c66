package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/trezcool/canteen/core/menu"
)

type menuRepository struct {
	db *DB
}

var _ menu.Repository = (*menuRepository)(nil)

func NewMenuRepository(db *DB) menu.Repository {
	return &menuRepository{db: db}
}

func (repo *menuRepository) CreateItem(_ context.Context, it menu.Item) (menu.Item, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	it.ID = uuid.New().String()
	repo.db.items[it.ID] = &it
	return it, nil
}

func (repo *menuRepository) GetItemByID(_ context.Context, id string) (menu.Item, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if it, ok := repo.db.items[id]; ok {
		return *it, nil
	}
	return menu.Item{}, menu.ErrNotFound
}

func (repo *menuRepository) ListItems(_ context.Context) ([]menu.Item, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	items := make([]menu.Item, 0, len(repo.db.items))
	for _, it := range repo.db.items {
		items = append(items, *it)
	}
	position := func(it menu.Item) int {
		if cat, ok := repo.db.categories[it.CategoryID]; ok {
			return cat.Position
		}
		return int(^uint(0) >> 1) // uncategorized last
	}
	sort.Slice(items, func(i, j int) bool {
		pi, pj := position(items[i]), position(items[j])
		if pi != pj {
			return pi < pj
		}
		return strings.ToLower(items[i].Name) < strings.ToLower(items[j].Name)
	})
	return items, nil
}

func (repo *menuRepository) UpdateItem(_ context.Context, it menu.Item) (menu.Item, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.items[it.ID]; !ok {
		return menu.Item{}, menu.ErrNotFound
	}
	repo.db.items[it.ID] = &it
	return it, nil
}

func (repo *menuRepository) DeleteItem(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.items[id]; !ok {
		return menu.ErrNotFound
	}
	delete(repo.db.items, id)
	for favID, fav := range repo.db.favorites {
		if fav.ItemID == id {
			delete(repo.db.favorites, favID)
		}
	}
	rows := repo.db.cart[:0]
	for _, row := range repo.db.cart {
		if row.itemID != id {
			rows = append(rows, row)
		}
	}
	repo.db.cart = rows
	return nil
}

func (repo *menuRepository) CreateCategory(_ context.Context, cat menu.Category) (menu.Category, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, c := range repo.db.categories {
		if strings.EqualFold(c.Name, cat.Name) {
			return menu.Category{}, menu.ErrCategoryExists
		}
	}
	cat.ID = uuid.New().String()
	repo.db.categories[cat.ID] = &cat
	return cat, nil
}

func (repo *menuRepository) GetCategoryByID(_ context.Context, id string) (menu.Category, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if cat, ok := repo.db.categories[id]; ok {
		return *cat, nil
	}
	return menu.Category{}, menu.ErrCategoryNotFound
}

func (repo *menuRepository) ListCategories(_ context.Context) ([]menu.Category, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	cats := make([]menu.Category, 0, len(repo.db.categories))
	for _, c := range repo.db.categories {
		cats = append(cats, *c)
	}
	sort.Slice(cats, func(i, j int) bool {
		if cats[i].Position != cats[j].Position {
			return cats[i].Position < cats[j].Position
		}
		return cats[i].Name < cats[j].Name
	})
	return cats, nil
}

func (repo *menuRepository) AddFavorite(_ context.Context, fav menu.Favorite) (menu.Favorite, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, f := range repo.db.favorites {
		if f.UserID == fav.UserID && f.ItemID == fav.ItemID {
			return menu.Favorite{}, menu.ErrFavoriteExists
		}
	}
	fav.ID = uuid.New().String()
	fav.Item = nil
	repo.db.favorites[fav.ID] = &fav
	return fav, nil
}

func (repo *menuRepository) RemoveFavorite(_ context.Context, userID, itemID string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for id, f := range repo.db.favorites {
		if f.UserID == userID && f.ItemID == itemID {
			delete(repo.db.favorites, id)
		}
	}
	return nil
}

func (repo *menuRepository) ListFavorites(_ context.Context, userID string) ([]menu.Favorite, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	favs := make([]menu.Favorite, 0)
	for _, f := range repo.db.favorites {
		if f.UserID != userID {
			continue
		}
		fav := *f
		if it, ok := repo.db.items[f.ItemID]; ok {
			item := *it
			fav.Item = &item
		}
		favs = append(favs, fav)
	}
	name := func(f menu.Favorite) string {
		if f.Item == nil {
			return ""
		}
		return strings.ToLower(f.Item.Name)
	}
	sort.Slice(favs, func(i, j int) bool {
		if ni, nj := name(favs[i]), name(favs[j]); ni != nj {
			return ni < nj
		}
		return favs[i].ID < favs[j].ID
	})
	return favs, nil
}
