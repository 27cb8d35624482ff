package mailer

import "fmt"

// Plain templates for lifecycle mail. Content is deliberately minimal; the
// interesting part is the link carrying the out-of-band token.

// WelcomeMessage greets a new account.
func WelcomeMessage(to, name string) Message {
	return Message{
		To:      to,
		Subject: "Welcome",
		HTMLBody: fmt.Sprintf(
			"<p>Hi %s,</p><p>Your account has been created.</p>", name),
	}
}

// VerificationMessage carries the email-verification link.
func VerificationMessage(to, baseURL, token string) Message {
	return Message{
		To:      to,
		Subject: "Verify your email address",
		HTMLBody: fmt.Sprintf(
			"<p>Please verify your email address:</p><p><a href=\"%s/auth/verify-email?token=%s\">Verify email</a></p><p>The link expires in 24 hours.</p>",
			baseURL, token),
	}
}

// ResetMessage carries the password-reset link.
func ResetMessage(to, baseURL, token string) Message {
	return Message{
		To:      to,
		Subject: "Password reset requested",
		HTMLBody: fmt.Sprintf(
			"<p>A password reset was requested for your account.</p><p><a href=\"%s/reset-password?token=%s\">Reset password</a></p><p>The link expires in 1 hour. If you did not request this, ignore this email.</p>",
			baseURL, token),
	}
}

// PasswordChangedMessage notifies after a successful change.
func PasswordChangedMessage(to string) Message {
	return Message{
		To:       to,
		Subject:  "Your password was changed",
		HTMLBody: "<p>Your account password was just changed. If this was not you, request a password reset immediately.</p>",
	}
}
