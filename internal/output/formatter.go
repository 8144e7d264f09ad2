package output

import (
	"io"
	"os"

	"github.com/pipehealth/pipehealth-go/internal/models"
	"golang.org/x/term"
)

// Formatter renders an outlook result
type Formatter interface {
	Format(result *models.OutlookResult, w io.Writer) error
}

// NewFormatter creates a formatter by name: "table", "json" or "quiet"
func NewFormatter(format string) Formatter {
	switch format {
	case "json":
		return &JSONFormatter{}
	case "quiet":
		return &QuietFormatter{}
	default:
		return &TableFormatter{}
	}
}

// DefaultFormat picks the output format for the current environment:
// JSON when stdout is piped, a table on an interactive terminal.
func DefaultFormat() string {
	if os.Getenv("CI") == "true" {
		return "json"
	}
	if term.IsTerminal(int(os.Stdout.Fd())) {
		return "table"
	}
	return "json"
}
