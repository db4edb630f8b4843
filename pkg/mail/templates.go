package mail

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
	"time"
)

const resetText = `Hello {{.Name}},

A password reset was requested for your {{.App}} account.
Open the link below within {{.Valid}} to choose a new password:

{{.Link}}

If you did not ask for this, ignore this message.`

const resetHTML = `<p>Hello {{.Name}},</p>
<p>A password reset was requested for your {{.App}} account.</p>
<p><a href="{{.Link}}">Choose a new password</a> within {{.Valid}}.</p>
<p>If you did not ask for this, ignore this message.</p>`

const welcomeText = `Welcome {{.Name}},

An account was created for you on {{.App}}.
Username: {{.Username}}

Sign in at {{.Link}}`

const changedText = `Hello {{.Name}},

The password of your {{.App}} account was changed. Every other signed in
device has been logged out.

If this was not you, reset your password at {{.Link}}`

var (
	changedTextTmpl = texttemplate.Must(texttemplate.New("changed").Parse(changedText))
	resetTextTmpl   = texttemplate.Must(texttemplate.New("reset").Parse(resetText))
	resetHTMLTmpl   = htmltemplate.Must(htmltemplate.New("reset").Parse(resetHTML))
	welcomeTextTmpl = texttemplate.Must(texttemplate.New("welcome").Parse(welcomeText))
)

type templateData struct {
	Name     string
	App      string
	Link     string
	Username string
	Valid    string
}

// PasswordReset renders the reset link email.
func PasswordReset(app string, to Address, link string, ttl time.Duration) (Message, error) {
	data := templateData{Name: to.Name, App: app, Link: link, Valid: humanDuration(ttl)}
	var text, html bytes.Buffer
	if err := resetTextTmpl.Execute(&text, data); err != nil {
		return Message{}, fmt.Errorf("render reset mail: %w", err)
	}
	if err := resetHTMLTmpl.Execute(&html, data); err != nil {
		return Message{}, fmt.Errorf("render reset mail: %w", err)
	}
	return Message{To: []Address{to}, Subject: "Password reset", Text: text.String(), HTML: html.String()}, nil
}

// Welcome renders the account creation email.
func Welcome(app string, to Address, username, loginURL string) (Message, error) {
	var text bytes.Buffer
	data := templateData{Name: to.Name, App: app, Link: loginURL, Username: username}
	if err := welcomeTextTmpl.Execute(&text, data); err != nil {
		return Message{}, fmt.Errorf("render welcome mail: %w", err)
	}
	return Message{To: []Address{to}, Subject: "Your account", Text: text.String()}, nil
}

// PasswordChanged renders the notice sent after a password change.
func PasswordChanged(app string, to Address, resetURL string) (Message, error) {
	var text bytes.Buffer
	if err := changedTextTmpl.Execute(&text, templateData{Name: to.Name, App: app, Link: resetURL}); err != nil {
		return Message{}, fmt.Errorf("render password changed mail: %w", err)
	}
	return Message{To: []Address{to}, Subject: "Password changed", Text: text.String()}, nil
}

func humanDuration(d time.Duration) string {
	if d >= time.Hour && d%time.Hour == 0 {
		hours := int(d / time.Hour)
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	}
	return strings.TrimSuffix(d.Round(time.Minute).String(), "0s")
}
