package dispatch

import (
	"strings"
)

const commandMarker = "/"

// IsCommand reports whether text begins with the command marker.
func IsCommand(text string) bool {
	return strings.HasPrefix(text, commandMarker)
}

// ExtractCommand pulls the command token out of message text: the first
// whitespace-delimited token, with any @botname suffix stripped and the
// marker removed, lower-cased. Returns false when the text carries no command.
func ExtractCommand(text string) (string, bool) {
	if !IsCommand(text) {
		return "", false
	}

	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", false
	}

	token, _, _ := strings.Cut(fields[0], "@")
	return strings.ToLower(token[len(commandMarker):]), true
}
