package service

import (
	"context"

	"go.uber.org/zap"
)

// Mailer hands tokens to the email delivery collaborator. Implementations
// must honour ctx; callers run them off the request path with a deadline,
// log failures and move on.
type Mailer interface {
	SendVerification(ctx context.Context, email, token string) error
	SendPasswordReset(ctx context.Context, email, token string) error
}

// LogMailer writes dispatches to the log. It stands in when no broker is
// configured.
type LogMailer struct{ Log *zap.Logger }

func (m LogMailer) SendVerification(_ context.Context, email, _ string) error {
	m.logger().Info("verification email (log only)", zap.String("email", email))
	return nil
}

func (m LogMailer) SendPasswordReset(_ context.Context, email, _ string) error {
	m.logger().Info("password reset email (log only)", zap.String("email", email))
	return nil
}

func (m LogMailer) logger() *zap.Logger {
	if m.Log == nil {
		return zap.NewNop()
	}
	return m.Log
}
