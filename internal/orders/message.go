package orders

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"SliceSizzle/internal/money"
)

const rule = "━━━━━━━━━━━━━━━"

// FormatMessage renders the kitchen relay text in Telegram Markdown. Amounts
// are whole rupees.
func FormatMessage(o Order, orderID string, at time.Time) string {
	c := Customer{}
	if o.Customer != nil {
		c = *o.Customer
	}

	var b strings.Builder
	b.WriteString("🍕 *NEW ORDER*\n")
	b.WriteString(rule + "\n\n")

	fmt.Fprintf(&b, "🆔 *Order ID:* %s\n", orderID)
	fmt.Fprintf(&b, "👤 *Customer:* %s %s\n", c.FirstName, c.LastName)
	fmt.Fprintf(&b, "📧 *Email:* %s\n", c.Email)
	fmt.Fprintf(&b, "📱 *Phone:* %s\n\n", c.Phone)

	b.WriteString("📍 *Delivery Address:*\n")
	fmt.Fprintf(&b, "%s\n", c.Address)
	fmt.Fprintf(&b, "%s, %s %s\n\n", c.City, c.State, c.ZipCode)

	if notes := strings.TrimSpace(c.Notes); notes != "" {
		fmt.Fprintf(&b, "📝 *Notes:* %s\n\n", notes)
	}

	b.WriteString("🛒 *Order Items:*\n")
	for i, it := range o.Items {
		line := it.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
		fmt.Fprintf(&b, "%d. %s x%d - %s\n", i+1, it.Name, it.Quantity, money.Whole(line))
	}

	b.WriteString("\n" + rule + "\n")
	fmt.Fprintf(&b, "💵 Subtotal: %s\n", money.Whole(o.Subtotal.Decimal))
	fmt.Fprintf(&b, "💰 *Total: %s*\n", money.Whole(o.Total.Decimal))
	b.WriteString(rule + "\n\n")
	fmt.Fprintf(&b, "⏰ %s", at.Format("1/2/2006, 3:04:05 PM"))

	return b.String()
}
