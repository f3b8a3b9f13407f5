package email

import (
	"html/template"
	"strings"

	"github.com/shopspring/decimal"
)

// OrderItem represents an item in an order for email purposes
type OrderItem struct {
	Name     string
	Unit     string
	Quantity int
	Price    decimal.Decimal
}

func (i OrderItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

var confirmationTmpl = template.Must(template.New("confirmation").Funcs(template.FuncMap{
	"money": func(d decimal.Decimal) string { return d.StringFixed(2) },
}).Parse(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
	<h1 style="font-size: 22px;">Thank you for your order</h1>
	<p>Order number</p>
	<p style="font-size: 18px; font-weight: bold; font-family: monospace;">{{.OrderID}}</p>
	<table style="width: 100%; border-collapse: collapse; margin: 20px 0;">
		<thead>
			<tr style="background: #f8f9fa;">
				<th style="padding: 10px; text-align: left;">Item</th>
				<th style="padding: 10px; text-align: center;">Qty</th>
				<th style="padding: 10px; text-align: right;">Unit price</th>
				<th style="padding: 10px; text-align: right;">Subtotal</th>
			</tr>
		</thead>
		<tbody>
		{{- range .Items}}
			<tr>
				<td style="padding: 10px; border-bottom: 1px solid #eee;">{{.Name}}{{if .Unit}} ({{.Unit}}){{end}}</td>
				<td style="padding: 10px; border-bottom: 1px solid #eee; text-align: center;">{{.Quantity}}</td>
				<td style="padding: 10px; border-bottom: 1px solid #eee; text-align: right;">{{money .Price}}</td>
				<td style="padding: 10px; border-bottom: 1px solid #eee; text-align: right;">{{money .Subtotal}}</td>
			</tr>
		{{- end}}
		</tbody>
	</table>
	<p style="text-align: right; font-size: 20px; font-weight: bold;">Total {{money .Total}}</p>
	<p style="font-size: 12px; color: #999;">This message was sent automatically. Please do not reply.</p>
</body>
</html>`))

// BuildOrderConfirmationBody renders the HTML body for order confirmation email
func BuildOrderConfirmationBody(orderID string, total decimal.Decimal, items []OrderItem) (string, error) {
	var b strings.Builder
	err := confirmationTmpl.Execute(&b, struct {
		OrderID string
		Items   []OrderItem
		Total   decimal.Decimal
	}{orderID, items, total})
	if err != nil {
		return "", err
	}
	return b.String(), nil
}
