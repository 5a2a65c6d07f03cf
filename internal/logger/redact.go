package logger

import "strings"

// RedactEmail masks the local part of an email address, keeping the first
// character and the domain: "jane.doe@school.edu" becomes "j***@school.edu".
// Strings without an '@' are returned masked entirely.
func RedactEmail(email string) string {
	if email == "" {
		return ""
	}
	at := strings.LastIndexByte(email, '@')
	if at <= 0 {
		return "***"
	}
	return email[:1] + "***" + email[at:]
}
