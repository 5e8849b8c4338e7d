package email

import (
	"fmt"
	"html"
	"net/url"
	"strings"

	"github.com/osteele/liquid"

	"github.com/ignite/newsletter/internal/domain"
)

const confirmationSubject = "Welcome to our newsletter!"

const confirmationHTMLTemplate = `<p>Welcome, {{ name | escape }}!</p>
<p>Click <a href="{{ confirmation_link }}">here</a> to confirm your subscription.</p>
<p>If you did not request this, you can ignore this email.</p>`

const confirmationTextTemplate = `Welcome, {{ name }}!

Visit {{ confirmation_link }} to confirm your subscription.

If you did not request this, you can ignore this email.`

// Renderer renders confirmation email bodies from Liquid templates.
// Templates are parsed once at construction.
type Renderer struct {
	html *liquid.Template
	text *liquid.Template
}

// NewRenderer builds the renderer and registers the filters the templates
// use.
func NewRenderer() (*Renderer, error) {
	engine := liquid.NewEngine()

	// HTML escape (safety): {{ name | escape }}
	engine.RegisterFilter("escape", func(s string) string {
		return html.EscapeString(s)
	})

	htmlTpl, err := engine.ParseString(confirmationHTMLTemplate)
	if err != nil {
		return nil, fmt.Errorf("parsing HTML template: %w", err)
	}
	textTpl, err := engine.ParseString(confirmationTextTemplate)
	if err != nil {
		return nil, fmt.Errorf("parsing text template: %w", err)
	}

	return &Renderer{html: htmlTpl, text: textTpl}, nil
}

// ConfirmationEmail renders the subject and both bodies for a confirmation
// message carrying the given link.
func (r *Renderer) ConfirmationEmail(name domain.Name, confirmationLink string) (subject, htmlBody, textBody string, err error) {
	bindings := map[string]interface{}{
		"name":              name.String(),
		"confirmation_link": confirmationLink,
	}

	htmlBody, err = r.html.RenderString(bindings)
	if err != nil {
		return "", "", "", fmt.Errorf("rendering HTML body: %w", err)
	}
	textBody, err = r.text.RenderString(bindings)
	if err != nil {
		return "", "", "", fmt.Errorf("rendering text body: %w", err)
	}

	return confirmationSubject, htmlBody, textBody, nil
}

// ConfirmationLink builds the link a subscriber follows to confirm,
// embedding the token as a query parameter.
func ConfirmationLink(baseURL, token string) string {
	params := url.Values{}
	params.Set("subscription_token", token)
	return strings.TrimRight(baseURL, "/") + "/subscriptions/confirm?" + params.Encode()
}
