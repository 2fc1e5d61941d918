package catalog

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/shopspring/decimal"
)

var ErrUnknownSort = errors.New("unknown sort")

type Product struct {
	ID          string
	Name        string
	Price       decimal.Decimal
	Category    string
	Image       string
	Description string
	Tags        []string
	Calories    int
}

type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Icon string `json:"icon,omitempty"`
}

type productJSON struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Price       json.Number `json:"price"`
	Category    string      `json:"category"`
	Image       string      `json:"image"`
	Description string      `json:"description"`
	Tags        []string    `json:"tags"`
	Calories    int         `json:"calories"`
}

// MarshalJSON keeps price a JSON number without going through float64.
func (p Product) MarshalJSON() ([]byte, error) {
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	return json.Marshal(productJSON{
		ID:          p.ID,
		Name:        p.Name,
		Price:       json.Number(p.Price.String()),
		Category:    p.Category,
		Image:       p.Image,
		Description: p.Description,
		Tags:        tags,
		Calories:    p.Calories,
	})
}

func (p *Product) UnmarshalJSON(b []byte) error {
	var raw productJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	price := decimal.Zero
	if raw.Price != "" {
		var err error
		if price, err = decimal.NewFromString(raw.Price.String()); err != nil {
			return err
		}
	}
	*p = Product{
		ID:          raw.ID,
		Name:        raw.Name,
		Price:       price,
		Category:    raw.Category,
		Image:       raw.Image,
		Description: raw.Description,
		Tags:        raw.Tags,
		Calories:    raw.Calories,
	}
	return nil
}

func (p Product) HasTag(tag string) bool {
	for _, t := range p.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Store is the read side of the menu. List returns products in menu order.
type Store interface {
	Ping(ctx context.Context) error
	List(ctx context.Context) ([]Product, error)
	Get(ctx context.Context, id string) (Product, bool, error)
	Categories(ctx context.Context) ([]Category, error)
}
