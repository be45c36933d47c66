package main

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/trezcool/canteen/core/menu"
)

type (
	seedFile struct {
		Categories []seedCategory `yaml:"categories"`
	}

	seedCategory struct {
		Name     string     `yaml:"name"`
		Position int        `yaml:"position"`
		Items    []seedItem `yaml:"items"`
	}

	seedItem struct {
		Name        string `yaml:"name"`
		Description string `yaml:"description"`
		Price       string `yaml:"price"`
		Vegetarian  bool   `yaml:"vegetarian"`
		Available   *bool  `yaml:"available"`
	}

	seedResult struct {
		categories int
		items      int
		skipped    int
	}
)

// seedMenu creates the categories and items of a YAML menu file.
// Categories and items that already exist (same name, case-insensitive) are left alone,
// so a file can be seeded more than once.
func (cli *commandLine) seedMenu(data []byte) (seedResult, error) {
	var res seedResult
	var file seedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return res, errors.Wrap(err, "parsing menu file")
	}

	ctx := context.Background()
	cats, err := cli.menuSvc.ListCategories(ctx)
	if err != nil {
		return res, err
	}
	catIDs := make(map[string]string, len(cats))
	for _, c := range cats {
		catIDs[strings.ToLower(c.Name)] = c.ID
	}

	items, err := cli.menuSvc.ListItems(ctx, menu.Filter{})
	if err != nil {
		return res, err
	}
	itemNames := make(map[string]bool, len(items))
	for _, it := range items {
		itemNames[strings.ToLower(it.Name)] = true
	}

	for _, sc := range file.Categories {
		nc := menu.NewCategory{Name: sc.Name, Position: sc.Position}
		if err := nc.Validate(cli.validate); err != nil {
			return res, errors.Wrapf(err, "category %q", sc.Name)
		}
		catID, ok := catIDs[strings.ToLower(nc.Name)]
		if !ok {
			cat, err := cli.menuSvc.CreateCategory(ctx, nc)
			if err != nil {
				return res, errors.Wrapf(err, "category %q", nc.Name)
			}
			catID = cat.ID
			catIDs[strings.ToLower(cat.Name)] = cat.ID
			res.categories++
		}

		for _, si := range sc.Items {
			if itemNames[strings.ToLower(strings.TrimSpace(si.Name))] {
				res.skipped++
				continue
			}
			price, err := decimal.NewFromString(si.Price)
			if err != nil {
				return res, errors.Wrapf(err, "item %q: price", si.Name)
			}
			ni := menu.NewItem{
				Name:         si.Name,
				Description:  si.Description,
				Price:        price,
				CategoryID:   catID,
				IsVegetarian: si.Vegetarian,
				IsAvailable:  si.Available,
			}
			if err := ni.Validate(cli.validate); err != nil {
				return res, errors.Wrapf(err, "item %q", si.Name)
			}
			it, err := cli.menuSvc.CreateItem(ctx, ni)
			if err != nil {
				return res, errors.Wrapf(err, "item %q", si.Name)
			}
			itemNames[strings.ToLower(it.Name)] = true
			res.items++
		}
	}
	return res, nil
}
