// Package cascade resolves a team's ranked mentor preferences one mentor at
// a time. The cursor indexes the mentor currently being asked; -1 means the
// list is exhausted and the team needs manual allocation.
package cascade

import "errors"

// Exhausted is the cursor value once every preference has declined.
const Exhausted = -1

var (
	// ErrExhausted is returned when advancing a cursor that is already exhausted.
	ErrExhausted = errors.New("mentor preferences exhausted")
	// ErrBadCursor is returned for a cursor outside the preference list.
	ErrBadCursor = errors.New("preference cursor out of range")
)

// Current returns the mentor being asked, or false when there is none.
func Current[T comparable](prefs []T, cursor int) (T, bool) {
	var zero T
	if cursor < 0 || cursor >= len(prefs) {
		return zero, false
	}
	return prefs[cursor], true
}

// IsCurrent reports whether mentor is the one being asked.
func IsCurrent[T comparable](prefs []T, cursor int, mentor T) bool {
	cur, ok := Current(prefs, cursor)
	return ok && cur == mentor
}

// Next returns the cursor after the current mentor declines: the next
// index, or Exhausted after the last one. The result is never lower than
// cursor unless it is Exhausted.
func Next[T comparable](prefs []T, cursor int) (int, error) {
	if cursor == Exhausted {
		return Exhausted, ErrExhausted
	}
	if cursor < 0 || cursor >= len(prefs) {
		return cursor, ErrBadCursor
	}
	if cursor == len(prefs)-1 {
		return Exhausted, nil
	}
	return cursor + 1, nil
}

// IsAdvance reports whether moving from -> to is a legal cursor step:
// strictly forward, or to Exhausted from a live cursor.
func IsAdvance(from, to int) bool {
	if from == Exhausted {
		return false
	}
	return to == Exhausted || to > from
}
