package mailer

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"

	"digitalcart/internal/models"
)

type OrderEmail struct {
	CustomerName    string
	OrderID         string
	Items           []models.OrderItem
	Total           string
	Currency        string
	ConfirmationURL string
}

type CartEmail struct {
	// Subject is the subject of the sequence step being sent.
	Subject         string
	CustomerName    string
	ProductName     string
	ProductPrice    string
	CheckoutURL     string
	CouponCode      string
	DiscountPercent float64
	Step            int
}

var builtinTemplates = map[string]models.EmailTemplate{
	models.TemplateOrderConfirmation: {
		Kind:    models.TemplateOrderConfirmation,
		Subject: "Your order {{.OrderID}} is confirmed",
		Body: `<p>Hi {{if .CustomerName}}{{.CustomerName}}{{else}}there{{end}},</p>
<p>Thanks for your purchase. Your order total was {{.Total}} {{.Currency}}.</p>
<ul>{{range .Items}}<li>{{.Name}} x {{.Quantity}}</li>{{end}}</ul>
<p><a href="{{.ConfirmationURL}}">Open your downloads</a></p>`,
	},
	models.TemplateCartAbandonment: {
		Kind:    models.TemplateCartAbandonment,
		Subject: "{{.Subject}}",
		Body: `<p>Hi {{if .CustomerName}}{{.CustomerName}}{{else}}there{{end}},</p>
<p>You left <strong>{{.ProductName}}</strong> ({{.ProductPrice}}) in your cart.</p>
{{if .CouponCode}}<p>Use code <strong>{{.CouponCode}}</strong> for {{.DiscountPercent}}% off.</p>{{end}}
<p><a href="{{.CheckoutURL}}">Complete your purchase</a></p>`,
	},
}

// Compose renders an email of the given kind. A seller template overrides the
// built-in one; an empty subject on it keeps the built-in subject.
func Compose(kind string, custom *models.EmailTemplate, to string, data any) (Message, error) {
	tpl, ok := builtinTemplates[kind]
	if !ok {
		return Message{}, fmt.Errorf("mailer: unknown template kind %q", kind)
	}
	if custom != nil {
		if custom.Subject != "" {
			tpl.Subject = custom.Subject
		}
		if custom.Body != "" {
			tpl.Body = custom.Body
		}
	}

	subject, err := renderText(tpl.Subject, data)
	if err != nil {
		return Message{}, fmt.Errorf("mailer: subject: %w", err)
	}
	body, err := renderHTML(tpl.Body, data)
	if err != nil {
		return Message{}, fmt.Errorf("mailer: body: %w", err)
	}

	return Message{To: to, Subject: subject, HTML: body}, nil
}

// Validate reports whether a template body and subject parse.
func Validate(tpl models.EmailTemplate) error {
	if _, err := texttemplate.New("subject").Parse(tpl.Subject); err != nil {
		return err
	}
	_, err := htmltemplate.New("body").Parse(tpl.Body)
	return err
}

func renderText(src string, data any) (string, error) {
	t, err := texttemplate.New("subject").Option("missingkey=zero").Parse(src)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func renderHTML(src string, data any) (string, error) {
	t, err := htmltemplate.New("body").Option("missingkey=zero").Parse(src)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
