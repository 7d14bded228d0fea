package tasks

import (
	"fmt"

	"github.com/desertthunder/muzictl/internal/formatter"
)

const (
	completedLabel       = "Import completed!"
	failedLabel          = "Import failed"
	connectionErrorLabel = "Connection error"
	lostConnectionLabel  = "Lost connection to server. The import may still be running in the background."
	unknownErrorLabel    = "Unknown error"
	malformedErrorLabel  = "malformed progress message"
)

func processingLabel(unit string, n, total int) string {
	return fmt.Sprintf("Processing %s %d of %d", unit, n, total)
}

func tracksLabel(n int) string {
	return formatter.FormatInt(n) + " tracks imported"
}

func successLabel(n int, displayName string) string {
	return fmt.Sprintf("Successfully imported %s tracks from %s", formatter.FormatInt(n), displayName)
}

func errorLabel(msg string) string {
	if msg == "" {
		msg = unknownErrorLabel
	}
	return "Error: " + msg
}
