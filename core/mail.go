package core

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"net/mail"

	"github.com/pkg/errors"
)

type (
	Attachment struct {
		Content     []byte // raw, encoded by the sender
		ContentType string
		Filename    string
	}

	EmailMessage struct {
		To          []mail.Address
		Cc          []mail.Address
		Bcc         []mail.Address
		Subject     string
		TextContent string
		Attachments []Attachment
	}

	// EmailService is any service that can send emails
	EmailService interface {
		// Send delivers messages synchronously; messages without recipients are skipped.
		Send(ctx context.Context, messages ...*EmailMessage) error
	}
)

// Attach reads r entirely and adds it as an attachment.
// The content type is sniffed when not given.
func (m *EmailMessage) Attach(r io.Reader, filename string, ct ...string) error {
	content, err := io.ReadAll(r)
	if err != nil {
		return errors.Wrap(err, "reading attachment")
	}
	at := Attachment{Filename: filename, Content: content}
	if len(ct) > 0 {
		at.ContentType = ct[0]
	} else {
		at.ContentType = http.DetectContentType(content)
	}
	m.Attachments = append(m.Attachments, at)
	return nil
}

func (m *EmailMessage) HasRecipients() bool  { return len(m.To) > 0 }
func (m *EmailMessage) HasContent() bool     { return m.TextContent != "" }
func (m *EmailMessage) HasAttachments() bool { return len(m.Attachments) > 0 }

// Base64 returns the attachment content as standard base64.
func (at Attachment) Base64() string {
	return base64.StdEncoding.EncodeToString(at.Content)
}

// ParseAddresses parses a comma separated address list.
func ParseAddresses(list string) ([]mail.Address, error) {
	addrs, err := mail.ParseAddressList(list)
	if err != nil {
		return nil, NewValidationError(err, FieldError{Field: "email", Error: "invalid recipient list"})
	}
	out := make([]mail.Address, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, *a)
	}
	return out, nil
}
