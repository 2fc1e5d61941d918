// Package storefront is the terminal storefront: browse the menu, keep a
// cart between runs and check out against the orders API.
package storefront

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"go.uber.org/zap"

	"SliceSizzle/internal/cart"
	"SliceSizzle/internal/catalog"
	"SliceSizzle/internal/checkout"
	"SliceSizzle/internal/money"
)

var ErrUsage = errors.New("usage")

// Catalog is the part of the catalog API the storefront reads.
type Catalog interface {
	Products(ctx context.Context, q catalog.Query) ([]catalog.Product, error)
	Product(ctx context.Context, id string) (catalog.Product, error)
}

type App struct {
	Catalog Catalog
	Cart    *cart.Session
	Orders  checkout.Submitter
	Keys    checkout.KeyStore
	Log     *zap.Logger
	Out     io.Writer

	// ClearDelay overrides checkout.ClearDelay when positive.
	ClearDelay time.Duration
}

const usage = `usage: storefront <command> [args]

commands:
  menu [-category c] [-q text] [-sort default|price-low|price-high|name]
  cart
  add <product-id>
  remove <product-id>
  qty <product-id> <n>
  inc <product-id>
  dec <product-id>
  clear
  checkout -first .. -last .. -email .. -phone .. -address .. -city .. [-state ..] -zip .. [-notes ..]
`

func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprint(a.Out, usage)
		return ErrUsage
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "menu":
		return a.menu(ctx, rest)
	case "cart":
		a.printCart(a.Cart.Snapshot())
		return nil
	case "add":
		return a.withID(rest, func(id string) error { return a.add(ctx, id) })
	case "remove":
		return a.withID(rest, func(id string) error { return a.mutate(a.Cart.RemoveItem(ctx, id)) })
	case "inc":
		return a.withID(rest, func(id string) error { return a.mutate(a.Cart.IncrementQuantity(ctx, id)) })
	case "dec":
		return a.withID(rest, func(id string) error { return a.mutate(a.Cart.DecrementQuantity(ctx, id)) })
	case "qty":
		return a.qty(ctx, rest)
	case "clear":
		return a.mutate(a.Cart.ClearCart(ctx))
	case "checkout":
		return a.checkout(ctx, rest)
	case "help", "-h", "--help":
		fmt.Fprint(a.Out, usage)
		return nil
	default:
		fmt.Fprint(a.Out, usage)
		return fmt.Errorf("%w: unknown command %q", ErrUsage, cmd)
	}
}

func (a *App) menu(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("menu", flag.ContinueOnError)
	fs.SetOutput(a.Out)
	q := catalog.Query{}
	fs.StringVar(&q.Category, "category", "", "category id, or all")
	fs.StringVar(&q.Search, "q", "", "search name and description")
	fs.StringVar(&q.Sort, "sort", catalog.SortDefault, "default, price-low, price-high or name")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	if err := q.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}

	products, err := a.Catalog.Products(ctx, q)
	if err != nil {
		return err
	}
	if len(products) == 0 {
		fmt.Fprintln(a.Out, "No items found.")
		return nil
	}

	tw := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tPRICE\tTAGS")
	for _, p := range products {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", p.ID, p.Name, p.Category, money.Display(p.Price), strings.Join(p.Tags, ","))
	}
	return tw.Flush()
}

func (a *App) withID(args []string, fn func(id string) error) error {
	if len(args) != 1 || strings.TrimSpace(args[0]) == "" {
		return fmt.Errorf("%w: expected one product id", ErrUsage)
	}
	return fn(strings.TrimSpace(args[0]))
}

func (a *App) add(ctx context.Context, id string) error {
	p, err := a.Catalog.Product(ctx, id)
	if err != nil {
		return fmt.Errorf("add %s: %w", id, err)
	}
	c, err := a.Cart.AddItem(ctx, p)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.Out, "Added %s.\n", p.Name)
	a.printCart(c)
	return nil
}

func (a *App) qty(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("%w: expected <product-id> <n>", ErrUsage)
	}
	n, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("%w: quantity %q", ErrUsage, args[1])
	}
	return a.mutate(a.Cart.UpdateQuantity(ctx, args[0], n))
}

func (a *App) mutate(c cart.Cart, err error) error {
	if err != nil {
		return err
	}
	a.printCart(c)
	return nil
}

func (a *App) printCart(c cart.Cart) {
	if c.IsEmpty() {
		fmt.Fprintln(a.Out, "Your cart is empty.")
		return
	}

	tw := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tQTY\tPRICE\tLINE")
	for _, it := range c.Items() {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", it.ID, it.Name, it.Quantity, money.Display(it.Price), money.Display(it.LineTotal()))
	}
	_ = tw.Flush()

	fmt.Fprintf(a.Out, "\nItems:    %d\n", c.ItemCount())
	fmt.Fprintf(a.Out, "Subtotal: %s\n", money.Display(c.Subtotal()))
	fmt.Fprintf(a.Out, "Tax:      %s\n", money.Display(c.Tax()))
	fmt.Fprintf(a.Out, "Total:    %s\n", money.Display(c.Total()))
}

func (a *App) checkout(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("checkout", flag.ContinueOnError)
	fs.SetOutput(a.Out)
	var form checkout.Form
	fs.StringVar(&form.FirstName, "first", "", "first name")
	fs.StringVar(&form.LastName, "last", "", "last name")
	fs.StringVar(&form.Email, "email", "", "email address")
	fs.StringVar(&form.Phone, "phone", "", "phone number")
	fs.StringVar(&form.Address, "address", "", "street address")
	fs.StringVar(&form.City, "city", "", "city")
	fs.StringVar(&form.State, "state", "", "state or province")
	fs.StringVar(&form.ZipCode, "zip", "", "ZIP or postal code")
	fs.StringVar(&form.Notes, "notes", "", "delivery notes")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}

	flow := checkout.NewFlow(a.Cart, a.Orders, a.Log)
	flow.Keys = a.Keys
	if a.ClearDelay > 0 {
		flow.ClearDelay = a.ClearDelay
	}

	steps := []func() (checkout.State, error){
		func() (checkout.State, error) { return flow.Edit(form) },
		flow.Next,
		func() (checkout.State, error) { return flow.Submit(ctx) },
	}
	for _, step := range steps {
		s, err := step()
		if err != nil {
			if s.Err != "" {
				fmt.Fprintln(a.Out, s.Err)
			}
			return err
		}
	}

	s := flow.State()
	fmt.Fprintf(a.Out, "Order placed! Your order ID is %s.\n", s.OrderID)

	if err := flow.Settle(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.Out, "Your cart has been cleared.")
	return nil
}
