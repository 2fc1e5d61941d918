package catalog

import (
	"sort"
	"strings"
)

const (
	CategoryAll = "all"

	SortDefault   = "default"
	SortPriceLow  = "price-low"
	SortPriceHigh = "price-high"
	SortName      = "name"
)

// Query narrows the menu the way the storefront's menu section does.
type Query struct {
	Category string
	Search   string
	Sort     string
}

func (q Query) Validate() error {
	switch q.Sort {
	case "", SortDefault, SortPriceLow, SortPriceHigh, SortName:
		return nil
	default:
		return ErrUnknownSort
	}
}

// Filter applies category, search and sort to products without modifying the
// input slice. An empty result is a non-nil slice.
func Filter(products []Product, q Query) []Product {
	out := make([]Product, 0, len(products))

	needle := strings.ToLower(strings.TrimSpace(q.Search))
	for _, p := range products {
		if q.Category != "" && q.Category != CategoryAll && p.Category != q.Category {
			continue
		}
		if needle != "" &&
			!strings.Contains(strings.ToLower(p.Name), needle) &&
			!strings.Contains(strings.ToLower(p.Description), needle) {
			continue
		}
		out = append(out, p)
	}

	switch q.Sort {
	case SortPriceLow:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Price.LessThan(out[j].Price) })
	case SortPriceHigh:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Price.GreaterThan(out[j].Price) })
	case SortName:
		sort.SliceStable(out, func(i, j int) bool {
			return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
		})
	}

	return out
}
