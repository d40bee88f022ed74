package inspection

import "strconv"

// Critical violation codes span [1, 29] with code 15 carved out.
// Every severity decision in the system goes through this predicate so the
// rule cannot drift between the parser, the score, and theme extraction.
func IsCriticalCode(code int) bool {
	if code < 1 || code > 29 {
		return false
	}
	return code != 15
}

// IsCriticalCodeString applies IsCriticalCode to a raw code string.
// Non-numeric codes are never critical.
func IsCriticalCodeString(code string) bool {
	n, err := strconv.Atoi(code)
	if err != nil {
		return false
	}
	return IsCriticalCode(n)
}
