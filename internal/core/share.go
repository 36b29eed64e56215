package core

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/JonMunkholm/csvshare/internal/logging"
	"github.com/JonMunkholm/csvshare/internal/mail"
)

// ShareRequest asks for a share email.
type ShareRequest struct {
	RecordID   int64
	Recipient  string
	SenderName string
	Note       string

	// FileName shown in the email. Empty uses the record's display name.
	FileName string
}

// BuildShareLink returns the deep link for a record. It only checks that the
// record exists.
func (s *Service) BuildShareLink(ctx context.Context, recordID int64) (string, error) {
	if _, err := s.loadRecord(ctx, recordID); err != nil {
		return "", err
	}
	return s.shareLink(recordID), nil
}

func (s *Service) shareLink(id int64) string {
	return s.shareBase + "/" + strconv.FormatInt(id, 10)
}

// NotifyByEmail sends the share link for a record to req.Recipient and
// returns the link. The record is checked for existence only; route-level
// authentication is the gate.
//
// When delivery fails the link is still returned together with an error
// wrapping ErrNotificationFailed. Nothing is rolled back since nothing
// changed.
func (s *Service) NotifyByEmail(ctx context.Context, req ShareRequest) (link string, err error) {
	defer func() { observe("share", err) }()

	to, err := mail.ParseAddress(strings.TrimSpace(req.Recipient))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidRecipient, err)
	}

	rec, err := s.loadRecord(ctx, req.RecordID)
	if err != nil {
		return "", err
	}
	link = s.shareLink(rec.ID)

	notice := mail.ShareNotice{
		SenderName: strings.TrimSpace(req.SenderName),
		FileName:   strings.TrimSpace(req.FileName),
		Note:       strings.TrimSpace(req.Note),
		Link:       link,
	}
	if notice.FileName == "" {
		notice.FileName = rec.OriginalName
	}
	if notice.SenderName == "" {
		notice.SenderName = "Someone"
	}

	log := logging.WithFields(ctx, "record_id", rec.ID, "recipient", to.Address)

	msg, err := mail.NewShareMessage(ctx, s.mailer.From(), to, notice)
	if err != nil {
		log.Error("render share email failed", "error", err)
		return link, fmt.Errorf("%w: %w", ErrNotificationFailed, err)
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		log.Error("share email not delivered", "error", err)
		return link, fmt.Errorf("%w: %w", ErrNotificationFailed, err)
	}

	log.Info("share email sent")
	return link, nil
}
