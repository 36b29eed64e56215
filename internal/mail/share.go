package mail

import (
	"bytes"
	"context"
	"fmt"
)

// ShareNotice is the content of a "file shared with you" email.
type ShareNotice struct {
	SenderName string
	FileName   string
	Note       string
	Link       string
}

// Subject returns the email subject line.
func (n ShareNotice) Subject() string {
	return fmt.Sprintf("%s shared a file with you: %s", n.SenderName, n.FileName)
}

// ShareText is the plain-text alternative body.
func ShareText(n ShareNotice) string {
	var b bytes.Buffer
	fmt.Fprintf(&b, "%s has shared a file %q with you.\n\n", n.SenderName, n.FileName)
	if n.Note != "" {
		fmt.Fprintf(&b, "Message: %s\n\n", n.Note)
	}
	fmt.Fprintf(&b, "View the file: %s\n", n.Link)
	return b.String()
}

// NewShareMessage renders n into a message from sender to recipient.
func NewShareMessage(ctx context.Context, from, to Address, n ShareNotice) (*Message, error) {
	var html bytes.Buffer
	if err := ShareEmail(n).Render(ctx, &html); err != nil {
		return nil, fmt.Errorf("render share email: %w", err)
	}
	return &Message{
		From:    from,
		To:      []Address{to},
		Subject: n.Subject(),
		HTML:    html.String(),
		Text:    ShareText(n),
	}, nil
}
