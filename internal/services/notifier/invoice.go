package notifier

import (
	"fmt"
	"html"
	"strings"

	"github.com/BearBump/CargoTrack/internal/models"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var numbers = message.NewPrinter(language.English)

// Invoice: расчёт по группе посылок одного клиента.
type Invoice struct {
	TotalWeight decimal.Decimal
	CostUSD     decimal.Decimal
	CostKZT     int64
}

func computeInvoice(items []*models.TrackingItem, pricePerKg, rate decimal.Decimal) Invoice {
	total := decimal.Zero
	for _, it := range items {
		if it.Weight != nil && it.Weight.IsPositive() {
			total = total.Add(*it.Weight)
		}
	}
	usd := total.Mul(pricePerKg)
	return Invoice{
		TotalWeight: total,
		CostUSD:     usd,
		CostKZT:     usd.Mul(rate).Round(0).IntPart(),
	}
}

func mention(u *models.User) string {
	if tg := strings.TrimSpace(u.TelegramUsername); tg != "" {
		if !strings.HasPrefix(tg, "@") {
			tg = "@" + tg
		}
		return html.EscapeString(tg)
	}
	name := u.Name
	if name == "" {
		name = "Клиент"
	}
	return "<b>" + html.EscapeString(name) + "</b>"
}

func buildInvoice(u *models.User, items []*models.TrackingItem, b *models.Branch, pricePerKg, rate decimal.Decimal) string {
	code := u.UserCode
	if code == "" {
		code = fmt.Sprintf("ID:%d", u.ID)
	}
	inv := computeInvoice(items, pricePerKg, rate)

	var sb strings.Builder
	fmt.Fprintf(&sb, "📦 %s (%s)\n\n", mention(u), html.EscapeString(code))
	sb.WriteString("Сіздің тауарларыңыз филиалға жетті:\n\n")
	for i, it := range items {
		weight := "салмағы белгісіз"
		if it.Weight != nil && it.Weight.IsPositive() {
			weight = it.Weight.String() + " кг"
		}
		fmt.Fprintf(&sb, "%d. <b>%s</b> — %s — %s\n",
			i+1, html.EscapeString(it.TrackingCode), html.EscapeString(it.Description), weight)
	}
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "📊 Жалпы: <b>%d</b> тауар, <b>%s</b> кг\n", len(items), inv.TotalWeight.StringFixed(1))
	fmt.Fprintf(&sb, "💰 Құны: %s × $%s = <b>$%s</b> (≈ %s ₸)\n\n",
		inv.TotalWeight.StringFixed(1), pricePerKg.String(), inv.CostUSD.StringFixed(1),
		numbers.Sprintf("%d", inv.CostKZT))
	fmt.Fprintf(&sb, "📍 %s", html.EscapeString(b.Name))
	return sb.String()
}
