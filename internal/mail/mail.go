// Package mail sends out-of-band notifications.
//
// Senders are interchangeable: SMTPSender talks to a relay, LogSender only
// logs what would have been sent and is used when no relay is configured.
package mail

import (
	"context"
	"fmt"
	"mime"
	netmail "net/mail"
)

// Address is a display name plus mailbox.
type Address struct {
	Name    string
	Address string
}

// String formats the address for a header, encoding a non-ASCII name.
func (a Address) String() string {
	if a.Name == "" {
		return a.Address
	}
	return (&netmail.Address{Name: a.Name, Address: a.Address}).String()
}

// Message is a single email.
type Message struct {
	From    Address
	To      []Address
	Subject string
	HTML    string
	Text    string
}

// Sender delivers messages.
type Sender interface {
	Send(ctx context.Context, msg *Message) error
	From() Address
}

// ParseAddress validates a single recipient mailbox such as
// "jo@example.com" or "Jo <jo@example.com>".
func ParseAddress(s string) (Address, error) {
	a, err := netmail.ParseAddress(s)
	if err != nil {
		return Address{}, fmt.Errorf("parse address %q: %w", s, err)
	}
	return Address{Name: a.Name, Address: a.Address}, nil
}

func encodeSubject(s string) string {
	return mime.QEncoding.Encode("utf-8", s)
}
