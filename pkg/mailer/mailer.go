package mailer

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

// Sender transmits one outbound email message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Message represents one outbound email. BodyText is the plain-text fallback
// for clients that do not render HTML. AttachmentPath, when set, names a
// file on local disk to attach.
type Message struct {
	To             string `json:"to"`
	Subject        string `json:"subject"`
	BodyHTML       string `json:"body_html"`
	BodyText       string `json:"body_text,omitempty"`
	Tag            string `json:"tag,omitempty"`
	AttachmentPath string `json:"attachment_path,omitempty"`
}

// addressRegex is a pragmatic syntax check, not full RFC 5322.
var addressRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// ValidAddress reports whether addr looks like an email address.
func ValidAddress(addr string) bool {
	return addressRegex.MatchString(addr)
}

// Validate checks the minimal requirements for transmission.
func (m Message) Validate() error {
	if m.To == "" {
		return fmt.Errorf("%w: recipient address is required", ErrInvalidMessage)
	}
	if !ValidAddress(m.To) {
		return fmt.Errorf("%w: %q is not a valid email address", ErrInvalidMessage, m.To)
	}
	if m.Subject == "" {
		return fmt.Errorf("%w: subject is required", ErrInvalidMessage)
	}
	if m.BodyHTML == "" && m.BodyText == "" {
		return fmt.Errorf("%w: message body is required", ErrInvalidMessage)
	}
	return nil
}

var (
	ErrInvalidMessage = errors.New("mailer: invalid message")
	ErrInvalidConfig  = errors.New("mailer: invalid config")
	ErrSendFailed     = errors.New("mailer: failed to send email")
)
