// Package capacity answers whether a mentor or project can take one more
// team. It is pure logic; callers re-check inside the commit transaction.
package capacity

// HasRoom reports whether an entity holding assigned teams can take one
// more under maxTeams. A ceiling of zero or less never has room.
func HasRoom(assigned, maxTeams int) bool {
	return maxTeams > 0 && assigned < maxTeams
}

// Remaining returns how many more teams fit, never negative.
func Remaining(assigned, maxTeams int) int {
	if maxTeams <= assigned {
		return 0
	}
	return maxTeams - assigned
}
