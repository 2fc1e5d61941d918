// Package cart is the shopping cart: an immutable Cart value, a Store that
// owns the current value, and a Session that persists after every change.
package cart

import (
	"github.com/shopspring/decimal"

	"SliceSizzle/internal/catalog"
)

var taxRate = decimal.RequireFromString("0.0875")

// TaxRate is the flat sales tax applied to the subtotal.
func TaxRate() decimal.Decimal { return taxRate }

// Item is one product line. Quantity is always at least 1.
type Item struct {
	ID       string
	Name     string
	Price    decimal.Decimal
	Category string
	Image    string
	Quantity int
}

func (it Item) LineTotal() decimal.Decimal {
	return it.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
}

// Cart is an immutable snapshot. Every mutating method returns a new Cart and
// leaves the receiver untouched.
type Cart struct {
	items []Item
	open  bool
}

// New builds a cart from items, merging repeated IDs and dropping lines whose
// quantity is not positive. Insertion order of first appearance is kept.
func New(items ...Item) Cart {
	out := make([]Item, 0, len(items))
	pos := make(map[string]int, len(items))
	for _, it := range items {
		if it.Quantity <= 0 || it.ID == "" {
			continue
		}
		if i, ok := pos[it.ID]; ok {
			out[i].Quantity += it.Quantity
			continue
		}
		pos[it.ID] = len(out)
		out = append(out, it)
	}
	return Cart{items: out}
}

func (c Cart) Items() []Item {
	return append([]Item(nil), c.items...)
}

func (c Cart) Len() int      { return len(c.items) }
func (c Cart) IsEmpty() bool { return len(c.items) == 0 }
func (c Cart) IsOpen() bool  { return c.open }

func (c Cart) Find(id string) (Item, bool) {
	if i := c.index(id); i >= 0 {
		return c.items[i], true
	}
	return Item{}, false
}

func (c Cart) index(id string) int {
	for i := range c.items {
		if c.items[i].ID == id {
			return i
		}
	}
	return -1
}

// Add puts one unit of p in the cart.
func (c Cart) Add(p catalog.Product) Cart {
	items := c.Items()
	if i := c.index(p.ID); i >= 0 {
		items[i].Quantity++
		return Cart{items: items, open: c.open}
	}
	items = append(items, Item{
		ID:       p.ID,
		Name:     p.Name,
		Price:    p.Price,
		Category: p.Category,
		Image:    p.Image,
		Quantity: 1,
	})
	return Cart{items: items, open: c.open}
}

func (c Cart) Remove(id string) Cart {
	i := c.index(id)
	if i < 0 {
		return c
	}
	items := make([]Item, 0, len(c.items)-1)
	items = append(items, c.items[:i]...)
	items = append(items, c.items[i+1:]...)
	return Cart{items: items, open: c.open}
}

// UpdateQuantity sets the quantity of id; q <= 0 removes the line.
func (c Cart) UpdateQuantity(id string, q int) Cart {
	if q <= 0 {
		return c.Remove(id)
	}
	i := c.index(id)
	if i < 0 {
		return c
	}
	items := c.Items()
	items[i].Quantity = q
	return Cart{items: items, open: c.open}
}

func (c Cart) Increment(id string) Cart {
	it, ok := c.Find(id)
	if !ok {
		return c
	}
	return c.UpdateQuantity(id, it.Quantity+1)
}

func (c Cart) Decrement(id string) Cart {
	it, ok := c.Find(id)
	if !ok {
		return c
	}
	return c.UpdateQuantity(id, it.Quantity-1)
}

func (c Cart) Clear() Cart  { return Cart{open: c.open} }
func (c Cart) Toggle() Cart { return Cart{items: c.items, open: !c.open} }
func (c Cart) Open() Cart   { return Cart{items: c.items, open: true} }
func (c Cart) Close() Cart  { return Cart{items: c.items, open: false} }

func (c Cart) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, it := range c.items {
		sum = sum.Add(it.LineTotal())
	}
	return sum
}

func (c Cart) Tax() decimal.Decimal {
	return c.Subtotal().Mul(taxRate)
}

func (c Cart) Total() decimal.Decimal {
	return c.Subtotal().Add(c.Tax())
}

// ItemCount is the number of units, not the number of distinct products.
func (c Cart) ItemCount() int {
	n := 0
	for _, it := range c.items {
		n += it.Quantity
	}
	return n
}
