package cli

import "strings"

// MaskValue hides all but a short suffix of value.
//
//	| Length | Format      | Example  |
//	|--------|-------------|----------|
//	| 1-4    | All *       | ****     |
//	| 5-8    | Show last 2 | ******XY |
//	| 9+     | Show last 4 | ****WXYZ |
func MaskValue(value string) string {
	runes := []rune(value)
	n := len(runes)
	shown := 0
	switch {
	case n == 0:
		return ""
	case n <= 4:
	case n <= 8:
		shown = 2
	default:
		shown = 4
	}
	return strings.Repeat("*", n-shown) + string(runes[n-shown:])
}
