// Package delivery is the fire-and-forget channel that carries one-time
// codes to the user: console for development, direct SMTP, or a RabbitMQ
// queue drained by a separate sender.
package delivery

import "context"

type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}
