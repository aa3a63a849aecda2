// Package normalize trims and case-folds user input before it is stored
// or compared.
package normalize

import "strings"

// Email lowercases and trims an email address.
func Email(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Name trims a display name. Case is preserved.
func Name(s string) string {
	return strings.TrimSpace(s)
}

func Status(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func Role(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// QueryParam trims a query-string value.
func QueryParam(s string) string {
	return strings.TrimSpace(s)
}

// TeamCode uppercases and trims a join code so "abc123 " matches "ABC123".
func TeamCode(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// Cohort trims a batch or department label and collapses inner whitespace.
func Cohort(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
