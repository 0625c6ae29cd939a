package delivery

import (
	"fmt"

	"outreach-service/internal/domain/repository"

	"gopkg.in/gomail.v2"
)

// Sender is the From identity of automated emails.
type Sender struct {
	Email string
	Name  string
}

// buildMessage renders an OutboundEmail as a multipart/alternative MIME message.
func buildMessage(from Sender, email repository.OutboundEmail) *gomail.Message {
	m := gomail.NewMessage()
	m.SetAddressHeader("From", from.Email, from.Name)
	if email.ToName != "" {
		m.SetAddressHeader("To", email.To, email.ToName)
	} else {
		m.SetHeader("To", email.To)
	}
	m.SetHeader("Subject", email.Subject)
	if id, ok := email.Metadata["messageId"]; ok {
		m.SetHeader("X-Outreach-Message-Id", fmt.Sprint(id))
	}

	switch {
	case email.Text != "" && email.HTML != "":
		m.SetBody("text/plain", email.Text)
		m.AddAlternative("text/html", email.HTML)
	case email.HTML != "":
		m.SetBody("text/html", email.HTML)
	default:
		m.SetBody("text/plain", email.Text)
	}
	return m
}
