package mail

import (
	"context"
	"log/slog"
	"sync"
)

// LogSender logs messages instead of delivering them. It keeps the most
// recent messages so local runs and tests can inspect what was sent.
type LogSender struct {
	from   Address
	logger *slog.Logger

	mu   sync.Mutex
	sent []Message
}

const logSenderKeep = 50

// NewLogSender returns a sender that writes each message to logger.
func NewLogSender(from Address, logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{from: from, logger: logger}
}

func (s *LogSender) From() Address { return s.from }

func (s *LogSender) Send(ctx context.Context, msg *Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	to := make([]string, len(msg.To))
	for i, a := range msg.To {
		to[i] = a.Address
	}
	s.logger.InfoContext(ctx, "email not delivered, no smtp relay configured",
		"from", msg.From.Address,
		"to", to,
		"subject", msg.Subject,
	)

	s.mu.Lock()
	s.sent = append(s.sent, *msg)
	if len(s.sent) > logSenderKeep {
		s.sent = s.sent[len(s.sent)-logSenderKeep:]
	}
	s.mu.Unlock()
	return nil
}

// Sent returns the retained messages, oldest first.
func (s *LogSender) Sent() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.sent))
	copy(out, s.sent)
	return out
}
