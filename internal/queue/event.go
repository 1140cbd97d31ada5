// Package queue defines the email events exchanged over RabbitMQ and the
// publisher and consumer that move them.
package queue

import "time"

// Email event kinds.
const (
	KindVerification  = "email.verification"
	KindPasswordReset = "email.password_reset"
)

// EmailEvent asks the mailer worker to deliver a single-use token. It
// carries the raw token, so the queue must be treated as sensitive.
type EmailEvent struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Email     string    `json:"email"`
	Token     string    `json:"token"`
	CreatedAt time.Time `json:"created_at"`
}
