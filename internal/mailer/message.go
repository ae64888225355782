package mailer

import (
	"fmt"
	"strings"
)

// Message is a plain-text email.
type Message struct {
	To      string
	Subject string
	Body    string
	// Kind labels the message in logs ("verification", "password_reset").
	Kind string
}

// VerificationMessage builds the verify-your-email message.
func VerificationMessage(to, displayName, link string) Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", greetingName(displayName, to))
	b.WriteString("Confirm your email address to start building your watchlist:\n\n")
	fmt.Fprintf(&b, "%s\n\n", link)
	b.WriteString("The link expires in 24 hours. If you did not sign up, ignore this email.\n")
	return Message{To: to, Subject: "Verify your email", Body: b.String(), Kind: "verification"}
}

// PasswordResetMessage builds the reset-your-password message.
func PasswordResetMessage(to, displayName, link string) Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", greetingName(displayName, to))
	b.WriteString("Someone asked to reset the password for this account. Choose a new one here:\n\n")
	fmt.Fprintf(&b, "%s\n\n", link)
	b.WriteString("The link expires in 30 minutes and works once. If this wasn't you, ignore this email.\n")
	return Message{To: to, Subject: "Reset your password", Body: b.String(), Kind: "password_reset"}
}

func greetingName(displayName, to string) string {
	if displayName != "" {
		return displayName
	}
	if i := strings.IndexByte(to, '@'); i > 0 {
		return to[:i]
	}
	return "there"
}
