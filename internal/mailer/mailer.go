package mailer

import "context"

// Message is an outbound email.
type Message struct {
	To       string
	Subject  string
	HTMLBody string
}

// Mailer delivers messages. Implementations are best-effort collaborators;
// callers log failures and move on.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}
