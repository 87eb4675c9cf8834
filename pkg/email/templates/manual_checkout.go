package templates

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

// ManualOrder describes a purchase request made while payment processing is manual.
type ManualOrder struct {
	BuyerName  string
	BuyerEmail string
	UserID     string
	PlanName   string
	Price      string
}

// ManualOrderAdmin tells the administrator a buyer asked to purchase a plan.
func ManualOrderAdmin(o ManualOrder) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return writeAll(w,
			`<!doctype html><html><body>`,
			`<h1>New purchase request</h1>`,
			`<table>`,
			row("Plan", o.PlanName),
			row("Price", o.Price),
			row("Name", o.BuyerName),
			row("Email", o.BuyerEmail),
			row("User ID", o.UserID),
			`</table>`,
			`<p>Grant access once payment is received.</p>`,
			`</body></html>`,
		)
	})
}

// ManualOrderConfirmation acknowledges the request to the buyer.
func ManualOrderConfirmation(o ManualOrder) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		greeting := "Hi,"
		if o.BuyerName != "" {
			greeting = "Hi " + templ.EscapeString(o.BuyerName) + ","
		}
		return writeAll(w,
			`<!doctype html><html><body>`,
			`<p>`, greeting, `</p>`,
			`<p>We received your request for <strong>`, templ.EscapeString(o.PlanName),
			`</strong> (`, templ.EscapeString(o.Price), `).</p>`,
			`<p>We will send payment instructions shortly. Reply to this email if you have questions.</p>`,
			`</body></html>`,
		)
	})
}

func row(label, value string) string {
	if value == "" {
		value = "-"
	}
	return `<tr><th align="left">` + label + `</th><td>` + templ.EscapeString(value) + `</td></tr>`
}

func writeAll(w io.Writer, parts ...string) error {
	for _, p := range parts {
		if _, err := io.WriteString(w, p); err != nil {
			return err
		}
	}
	return nil
}
