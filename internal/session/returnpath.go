package session

import "strings"

// NormalizeReturnPath keeps local paths ("/x" or "~/x") and replaces anything
// else with "/". Protocol-relative forms such as "//host" and "/\host" are
// not local and are replaced too, as is any path carrying a control
// character, since browsers drop tabs and newlines before resolving it.
func NormalizeReturnPath(p string) string {
	if hasControlChar(p) {
		return "/"
	}
	switch {
	case strings.HasPrefix(p, "~/"):
		if isOffSite(p[1:]) {
			return "/"
		}
		return p
	case strings.HasPrefix(p, "/"):
		if isOffSite(p) {
			return "/"
		}
		return p
	default:
		return "/"
	}
}

func isOffSite(p string) bool {
	return strings.HasPrefix(p, "//") || strings.HasPrefix(p, "/\\")
}

func hasControlChar(p string) bool {
	for i := 0; i < len(p); i++ {
		if p[i] < 0x20 || p[i] == 0x7f {
			return true
		}
	}
	return false
}

// RedirectTarget turns a normalized return path into a Location value.
// "~/x" is rooted at the application and becomes "/x".
func RedirectTarget(returnPath string) string {
	p := NormalizeReturnPath(returnPath)
	if strings.HasPrefix(p, "~/") {
		return p[1:]
	}
	return p
}
