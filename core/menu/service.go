// Package menu manages the catalog: items, categories, images and customer favorites.
package menu

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/canteen/core"
)

// ItemCacheKeyPrefix prefixes the device cache entries written by PrefetchCache.
const ItemCacheKeyPrefix = "canteen.item."

var (
	// errors
	ErrNotFound         = errors.New("menu item not found")
	ErrCategoryNotFound = errors.New("category not found")
	ErrCategoryExists   = errors.New("a category with this name already exists")
	ErrFavoriteExists   = errors.New("item is already a favorite")
	ErrNotAnImage       = errors.New("uploaded file is not an image")
)

type (
	Repository interface {
		CreateItem(ctx context.Context, it Item) (Item, error)
		GetItemByID(ctx context.Context, id string) (Item, error)
		// ListItems returns every item in menu order (category position, then name).
		ListItems(ctx context.Context) ([]Item, error)
		UpdateItem(ctx context.Context, it Item) (Item, error)
		DeleteItem(ctx context.Context, id string) error

		CreateCategory(ctx context.Context, cat Category) (Category, error)
		GetCategoryByID(ctx context.Context, id string) (Category, error)
		ListCategories(ctx context.Context) ([]Category, error)

		// AddFavorite returns ErrFavoriteExists when the pair is already stored.
		AddFavorite(ctx context.Context, fav Favorite) (Favorite, error)
		RemoveFavorite(ctx context.Context, userID, itemID string) error
		ListFavorites(ctx context.Context, userID string) ([]Favorite, error)
	}

	ServiceInterface interface {
		ListItems(ctx context.Context, f Filter) ([]Item, error)
		GetItem(ctx context.Context, id string) (Item, error)
		CreateItem(ctx context.Context, ni NewItem) (Item, error)
		UpdateItem(ctx context.Context, it Item, ui UpdateItem) (Item, error)
		DeleteItem(ctx context.Context, id string) error
		UploadImage(ctx context.Context, id string, r io.Reader, filename, contentType string) (Item, error)

		ListCategories(ctx context.Context) ([]Category, error)
		CreateCategory(ctx context.Context, nc NewCategory) (Category, error)

		ListFavorites(ctx context.Context, userID string) ([]Favorite, error)
		AddFavorite(ctx context.Context, userID, itemID string) (Favorite, error)
		RemoveFavorite(ctx context.Context, userID, itemID string) error
	}

	Service struct {
		repo    Repository
		storage core.ObjectStorage
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(repo Repository, storage core.ObjectStorage) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(storage, "storage"),
	).CheckAndPanic()

	return &Service{repo: repo, storage: storage}
}

func (svc *Service) ListItems(ctx context.Context, f Filter) ([]Item, error) {
	items, err := svc.repo.ListItems(ctx)
	if err != nil {
		return nil, err
	}
	return Apply(items, f), nil
}

func (svc *Service) GetItem(ctx context.Context, id string) (Item, error) {
	return svc.repo.GetItemByID(ctx, id)
}

func (svc *Service) CreateItem(ctx context.Context, ni NewItem) (Item, error) {
	if err := svc.checkCategory(ctx, ni.CategoryID); err != nil {
		return Item{}, err
	}
	now := time.Now().UTC()
	it := Item{
		Name:         ni.Name,
		Description:  ni.Description,
		Price:        ni.Price,
		CategoryID:   ni.CategoryID,
		IsVegetarian: ni.IsVegetarian,
		IsAvailable:  true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if ni.IsAvailable != nil {
		it.IsAvailable = *ni.IsAvailable
	}
	return svc.repo.CreateItem(ctx, it)
}

func (svc *Service) UpdateItem(ctx context.Context, it Item, ui UpdateItem) (Item, error) {
	if ui.Name != "" {
		it.Name = ui.Name
	}
	if ui.Description != nil {
		it.Description = core.CleanString(*ui.Description)
	}
	if ui.Price != nil {
		it.Price = *ui.Price
	}
	if ui.CategoryID != nil {
		catID := core.CleanString(*ui.CategoryID)
		if err := svc.checkCategory(ctx, catID); err != nil {
			return Item{}, err
		}
		it.CategoryID = catID
	}
	if ui.IsVegetarian != nil {
		it.IsVegetarian = *ui.IsVegetarian
	}
	if ui.IsAvailable != nil {
		it.IsAvailable = *ui.IsAvailable
	}
	it.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateItem(ctx, it)
}

func (svc *Service) checkCategory(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	if _, err := svc.repo.GetCategoryByID(ctx, id); err != nil {
		if errors.Cause(err) == ErrCategoryNotFound {
			return core.NewValidationError(err, core.FieldError{Field: "category_id", Error: err.Error()})
		}
		return err
	}
	return nil
}

func (svc *Service) DeleteItem(ctx context.Context, id string) error {
	return svc.repo.DeleteItem(ctx, id)
}

// UploadImage stores the image in object storage and points the item at its public URL.
func (svc *Service) UploadImage(ctx context.Context, id string, r io.Reader, filename, contentType string) (Item, error) {
	if !strings.HasPrefix(contentType, "image/") {
		return Item{}, core.NewValidationError(ErrNotAnImage, core.FieldError{Field: "image", Error: ErrNotAnImage.Error()})
	}
	it, err := svc.repo.GetItemByID(ctx, id)
	if err != nil {
		return Item{}, err
	}

	objPath := path.Join("menu", it.ID, uuid.New().String()+strings.ToLower(path.Ext(filename)))
	if err = svc.storage.Upload(ctx, objPath, r, contentType); err != nil {
		return Item{}, errors.Wrap(err, "uploading image")
	}
	it.ImageURL = svc.storage.PublicURL(objPath)
	it.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateItem(ctx, it)
}

func (svc *Service) ListCategories(ctx context.Context) ([]Category, error) {
	return svc.repo.ListCategories(ctx)
}

func (svc *Service) CreateCategory(ctx context.Context, nc NewCategory) (Category, error) {
	cat, err := svc.repo.CreateCategory(ctx, Category{Name: nc.Name, Position: nc.Position})
	if err != nil {
		if errors.Cause(err) == ErrCategoryExists {
			return Category{}, core.NewValidationError(err, core.FieldError{Field: "name", Error: err.Error()})
		}
		return Category{}, err
	}
	return cat, nil
}

func (svc *Service) ListFavorites(ctx context.Context, userID string) ([]Favorite, error) {
	return svc.repo.ListFavorites(ctx, userID)
}

func (svc *Service) AddFavorite(ctx context.Context, userID, itemID string) (Favorite, error) {
	it, err := svc.repo.GetItemByID(ctx, itemID)
	if err != nil {
		return Favorite{}, err
	}
	fav, err := svc.repo.AddFavorite(ctx, Favorite{UserID: userID, ItemID: it.ID})
	if err != nil {
		if errors.Cause(err) == ErrFavoriteExists {
			return Favorite{}, core.NewValidationError(err, core.FieldError{Field: "item_id", Error: err.Error()})
		}
		return Favorite{}, err
	}
	fav.Item = &it
	return fav, nil
}

func (svc *Service) RemoveFavorite(ctx context.Context, userID, itemID string) error {
	return svc.repo.RemoveFavorite(ctx, userID, itemID)
}

// PrefetchCache writes a display copy of every item to the device cache.
// The entries are never read back as the source of truth.
func PrefetchCache(ctx context.Context, cache core.Cache, items []Item, logger core.Logger) int {
	var n int
	for _, it := range items {
		data, err := json.Marshal(it)
		if err == nil {
			err = cache.Set(ctx, ItemCacheKeyPrefix+it.ID, data)
		}
		if err != nil {
			logger.Warn(fmt.Sprintf("menu.PrefetchCache(%s): %v", it.ID, err), err)
			continue
		}
		n++
	}
	return n
}

// CachedItem reads an entry written by PrefetchCache.
func CachedItem(ctx context.Context, cache core.Cache, id string) (Item, bool) {
	data, found, err := cache.Get(ctx, ItemCacheKeyPrefix+id)
	if err != nil || !found {
		return Item{}, false
	}
	var it Item
	if err = json.Unmarshal(data, &it); err != nil {
		return Item{}, false
	}
	return it, true
}
