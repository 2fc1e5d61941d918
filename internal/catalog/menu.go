package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

//go:embed menu.yaml
var defaultMenu []byte

var (
	ErrDuplicateProduct = errors.New("duplicate product id")
	ErrNegativePrice    = errors.New("negative price")
)

type Menu struct {
	Categories []Category
	Products   []Product
}

type menuFile struct {
	Categories []Category `yaml:"categories"`
	Products   []struct {
		ID          string   `yaml:"id"`
		Name        string   `yaml:"name"`
		Price       string   `yaml:"price"`
		Category    string   `yaml:"category"`
		Image       string   `yaml:"image"`
		Description string   `yaml:"description"`
		Tags        []string `yaml:"tags"`
		Calories    int      `yaml:"calories"`
	} `yaml:"products"`
}

// DefaultMenu is the menu compiled into the binary.
func DefaultMenu() (Menu, error) {
	return ParseMenu(defaultMenu)
}

// LoadMenu reads a menu file from disk; an empty path yields DefaultMenu.
func LoadMenu(path string) (Menu, error) {
	if path == "" {
		return DefaultMenu()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Menu{}, fmt.Errorf("read menu: %w", err)
	}
	return ParseMenu(raw)
}

func ParseMenu(raw []byte) (Menu, error) {
	const op = "catalog.ParseMenu"

	var f menuFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return Menu{}, fmt.Errorf("%s: %w", op, err)
	}

	m := Menu{Categories: f.Categories, Products: make([]Product, 0, len(f.Products))}
	seen := make(map[string]struct{}, len(f.Products))
	for _, p := range f.Products {
		id := strings.TrimSpace(p.ID)
		if id == "" {
			return Menu{}, fmt.Errorf("%s: product without id", op)
		}
		if _, dup := seen[id]; dup {
			return Menu{}, fmt.Errorf("%s: %w: %s", op, ErrDuplicateProduct, id)
		}
		seen[id] = struct{}{}

		price, err := decimal.NewFromString(p.Price)
		if err != nil {
			return Menu{}, fmt.Errorf("%s: price of %s: %w", op, id, err)
		}
		if price.IsNegative() {
			return Menu{}, fmt.Errorf("%s: %w: %s", op, ErrNegativePrice, id)
		}

		m.Products = append(m.Products, Product{
			ID:          id,
			Name:        p.Name,
			Price:       price,
			Category:    p.Category,
			Image:       p.Image,
			Description: p.Description,
			Tags:        p.Tags,
			Calories:    p.Calories,
		})
	}
	return m, nil
}
