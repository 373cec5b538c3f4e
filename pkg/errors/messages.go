package errors

import "strings"

// operationMessages are the static per-operation fallbacks used when the
// server supplies no displayable message. Keyed by the operation names the
// coordinator passes in.
var operationMessages = map[string]string{
	"create":   "Failed to create task. Please try again.",
	"update":   "Failed to update task. Please try again.",
	"delete":   "Failed to delete task. Please try again.",
	"toggle":   "Failed to update task status. Please try again.",
	"reorder":  "Failed to reorder tasks. Please try again.",
	"search":   "Search failed. Please try again.",
	"list":     "Failed to load tasks. Please try again.",
	"login":    "Sign-in failed. Please check your credentials.",
	"register": "Registration failed. Please try again.",
}

// categoryMessages are the last-resort fallbacks per category.
var categoryMessages = map[Category]string{
	CategoryNetwork:        "Unable to reach the server. Check your internet connection.",
	CategoryValidation:     "The request was invalid. Please check your input.",
	CategoryAuthentication: "Your session has expired. Please sign in again.",
	CategoryPermission:     "You don't have permission to do that.",
	CategoryServer:         "The server encountered a problem. Please try again later.",
	CategoryUnknown:        "Something went wrong. Please try again.",
}

// recoveryHints are optional per-category hints shown under the banner text.
var recoveryHints = map[Category]string{
	CategoryNetwork:        "Check your internet connection.",
	CategoryAuthentication: "Sign in again to continue.",
	CategoryServer:         "This is usually temporary.",
}

// technicalTokens mark a server message as unsuitable for display. Raw
// exception text leaks stack traces and type names; operation context does not.
var technicalTokens = []string{
	"goroutine",
	"panic:",
	"stack trace",
	"nil pointer",
	"runtime error",
	"exception",
	"errno",
	"EOF",
	"sql:",
	"mongo",
	"cast to objectid",
	"validationerror",
	"typeerror",
	"referenceerror",
	"internal/",
	".go:",
	"0x",
}

// userFriendly reports whether a server-supplied message can be shown to an
// end user as-is.
func userFriendly(msg string) bool {
	if msg == "" || len(msg) > 200 {
		return false
	}
	lower := strings.ToLower(msg)
	for _, token := range technicalTokens {
		if strings.Contains(lower, strings.ToLower(token)) {
			return false
		}
	}
	return true
}

// selectMessage implements the two-tier fallback: server message when it is
// user friendly, then the per-operation static message, then the category one.
func selectMessage(category Category, operation, serverMessage string) string {
	if userFriendly(serverMessage) {
		return serverMessage
	}
	if msg, ok := operationMessages[operation]; ok {
		return msg
	}
	return categoryMessages[category]
}
