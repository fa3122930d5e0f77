package output

import (
	"encoding/json"
	"io"
	"time"

	"github.com/spiffcs/reviewdeck/internal/filter"
	"github.com/spiffcs/reviewdeck/internal/model"
)

// JSONFormatter formats output as JSON
type JSONFormatter struct {
	Pretty bool
}

// JSONOutput wraps the items with summary metadata for JSON output
type JSONOutput struct {
	Items           []model.Item `json:"items"`
	Snoozed         []model.Item `json:"snoozed,omitempty"`
	ActionableCount int          `json:"actionableCount"`
	VisibleCount    int          `json:"visibleCount"`
	LastUpdated     time.Time    `json:"lastUpdated,omitempty"`
}

// Format outputs the filtered worklist as JSON
func (f *JSONFormatter) Format(result filter.Result, lastUpdated time.Time, w io.Writer) error {
	output := JSONOutput{
		Items:           result.Items,
		Snoozed:         result.Snoozed,
		ActionableCount: result.ActionableCount,
		VisibleCount:    result.VisibleCount(),
		LastUpdated:     lastUpdated,
	}
	if output.Items == nil {
		output.Items = []model.Item{}
	}

	encoder := json.NewEncoder(w)
	if f.Pretty {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(output)
}
