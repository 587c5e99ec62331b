package notify

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"

	"uniform-shop/internal/domain"

	"github.com/shopspring/decimal"
)

// CallbackPrefix marks inline button data that carries a target status
const CallbackPrefix = "status:"

// ShortID is the first block of the order id, used in subjects and chat
func ShortID(order *domain.Order) string {
	return strings.SplitN(order.ID.String(), "-", 2)[0]
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// PaymentLabel describes how the order is paid
func PaymentLabel(order *domain.Order) string {
	if order.PaymentMethod == domain.PaymentMethodOnline {
		return "Paid online"
	}
	return "Pay on collection"
}

// OrderSummary renders the operator chat message for an order
func OrderSummary(shopName string, order *domain.Order) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s: new order #%s\n\n", shopName, ShortID(order))
	fmt.Fprintf(&b, "Customer: %s\n", order.CustomerName)
	fmt.Fprintf(&b, "Email: %s\n", order.CustomerEmail)
	fmt.Fprintf(&b, "Payment: %s\n\n", PaymentLabel(order))

	b.WriteString("Items:\n")
	for _, item := range order.Items {
		fmt.Fprintf(&b, "• %s (%s) × %d = %s\n", item.Name, item.SelectedSize, item.Quantity, money(item.LineTotal()))
	}

	fmt.Fprintf(&b, "\nTotal: %s\n", money(order.Total))
	fmt.Fprintf(&b, "Status: %s", order.Status)

	return b.String()
}

// StatusUpdateSummary is the summary edited in place after a transition
func StatusUpdateSummary(shopName string, order *domain.Order) string {
	return OrderSummary(shopName, order) + fmt.Sprintf("\n\nMarked %s by operator.", order.Status)
}

type confirmationView struct {
	ShopName string
	ShortID  string
	Name     string
	Payment  string
	Status   string
	Total    string
	Items    []confirmationLine
}

type confirmationLine struct {
	Name      string
	Size      string
	Quantity  int
	LineTotal string
}

var confirmationText = texttemplate.Must(texttemplate.New("text").Parse(
	`Hello {{.Name}},

Thank you for your order #{{.ShortID}} at {{.ShopName}}.

{{range .Items}}- {{.Name}} ({{.Size}}) x {{.Quantity}}: {{.LineTotal}}
{{end}}
Total: {{.Total}}
Payment: {{.Payment}}
Status: {{.Status}}

We will let you know when it is ready for collection.
`))

var confirmationHTML = htmltemplate.Must(htmltemplate.New("html").Parse(
	`<!DOCTYPE html>
<html>
<body>
<p>Hello {{.Name}},</p>
<p>Thank you for your order <strong>#{{.ShortID}}</strong> at {{.ShopName}}.</p>
<table>
<tr><th align="left">Item</th><th>Size</th><th>Qty</th><th align="right">Price</th></tr>
{{range .Items}}<tr><td>{{.Name}}</td><td>{{.Size}}</td><td>{{.Quantity}}</td><td align="right">{{.LineTotal}}</td></tr>
{{end}}</table>
<p><strong>Total: {{.Total}}</strong></p>
<p>Payment: {{.Payment}}<br>Status: {{.Status}}</p>
<p>We will let you know when it is ready for collection.</p>
</body>
</html>
`))

// OrderConfirmation renders the customer confirmation email
func OrderConfirmation(shopName string, order *domain.Order) (Email, error) {
	view := confirmationView{
		ShopName: shopName,
		ShortID:  ShortID(order),
		Name:     order.CustomerName,
		Payment:  PaymentLabel(order),
		Status:   string(order.Status),
		Total:    money(order.Total),
	}
	for _, item := range order.Items {
		view.Items = append(view.Items, confirmationLine{
			Name:      item.Name,
			Size:      item.SelectedSize,
			Quantity:  item.Quantity,
			LineTotal: money(item.LineTotal()),
		})
	}

	var text, html bytes.Buffer
	if err := confirmationText.Execute(&text, view); err != nil {
		return Email{}, fmt.Errorf("failed to render confirmation text: %w", err)
	}
	if err := confirmationHTML.Execute(&html, view); err != nil {
		return Email{}, fmt.Errorf("failed to render confirmation html: %w", err)
	}

	return Email{
		To:      order.CustomerEmail,
		Subject: "Order confirmation #" + view.ShortID,
		Text:    text.String(),
		HTML:    html.String(),
	}, nil
}

var resetHTML = htmltemplate.Must(htmltemplate.New("reset").Parse(
	`<p>A password reset was requested for your {{.ShopName}} account.</p>
<p><a href="{{.Link}}">Choose a new password</a>. The link expires in one hour.</p>
<p>If you did not ask for this you can ignore this email.</p>
`))

// PasswordReset renders the reset link email
func PasswordReset(shopName, to, link string) (Email, error) {
	var html bytes.Buffer
	err := resetHTML.Execute(&html, struct{ ShopName, Link string }{shopName, link})
	if err != nil {
		return Email{}, fmt.Errorf("failed to render reset email: %w", err)
	}

	text := fmt.Sprintf("A password reset was requested for your %s account.\n\n"+
		"Choose a new password: %s\nThe link expires in one hour.\n\n"+
		"If you did not ask for this you can ignore this email.\n", shopName, link)

	return Email{
		To:      to,
		Subject: shopName + " password reset",
		Text:    text,
		HTML:    html.String(),
	}, nil
}
