package output

import (
	"encoding/json"
	"io"

	"github.com/pipehealth/pipehealth-go/internal/models"
)

// JSONFormatter emits the full result for pipelines and machine consumers
type JSONFormatter struct{}

func (f *JSONFormatter) Format(result *models.OutlookResult, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
