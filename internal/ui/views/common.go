package views

import (
	"fmt"
	"strings"

	"github.com/tgienger/taskboard/internal/ui/styles"
)

// clamp returns val clamped between minVal and maxVal
func clamp(val, minVal, maxVal int) int {
	if val < minVal {
		return minVal
	}
	if val > maxVal {
		return maxVal
	}
	return val
}

// ShowLogin asks the app to switch to the login form
type ShowLogin struct{}

// ShowRegister asks the app to switch to the registration form
type ShowRegister struct{}

// helpLine renders "key desc • key desc" pairs
func helpLine(s *styles.Styles, pairs ...string) string {
	var parts []string
	for i := 0; i+1 < len(pairs); i += 2 {
		parts = append(parts, fmt.Sprintf("%s %s", s.HelpKey.Render(pairs[i]), s.HelpDesc.Render(pairs[i+1])))
	}
	return s.Help.Render(strings.Join(parts, " • "))
}

// cycle steps through n options, wrapping at both ends
func cycle(idx, n, dir int) int {
	if n == 0 {
		return 0
	}
	return ((idx+dir)%n + n) % n
}
