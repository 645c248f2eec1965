package delivery

import (
	"context"
	"log/slog"
)

// Console writes the message to the log instead of sending it.
type Console struct {
	log *slog.Logger
}

func NewConsole(log *slog.Logger) *Console {
	return &Console{log: log}
}

func (c *Console) Send(ctx context.Context, to, subject, body string) error {
	c.log.Info("message dispatched",
		slog.String("channel", "console"),
		slog.String("to", to),
		slog.String("subject", subject),
		slog.String("body", body),
	)

	return nil
}
