package graphstate

import (
	"encoding/json"
)

// Report is a serialisable view of a ChangeSet without entity pointers, meant
// for logging and transport helpers.
type Report struct {
	Operation string         `json:"operation"`
	Entries   []ReportEntry  `json:"entries"`
	Summary   map[string]int `json:"summary,omitempty"`
}

// ReportEntry describes one tracked entity.
type ReportEntry struct {
	Path   string `json:"path"`
	Type   string `json:"type"`
	State  State  `json:"state"`
	KeySet bool   `json:"key_set"`
	Keys   []any  `json:"keys,omitempty"`
}

// Report builds a Report for the change set.
func (c *ChangeSet) Report() Report {
	report := Report{
		Operation: c.Operation().String(),
		Entries:   []ReportEntry{},
	}
	if c == nil {
		return report
	}
	for _, entry := range c.entries {
		report.Entries = append(report.Entries, ReportEntry{
			Path:   entry.Path,
			Type:   entry.Type,
			State:  entry.State,
			KeySet: entry.KeySet,
			Keys:   append([]any(nil), entry.Keys...),
		})
	}
	summary := c.Summary()
	if len(summary) > 0 {
		report.Summary = make(map[string]int, len(summary))
		for state, n := range summary {
			report.Summary[state.String()] = n
		}
	}
	return report
}

// ToJSON serialises the report into JSON.
func (r Report) ToJSON() ([]byte, error) {
	type alias Report
	return json.Marshal(alias(r))
}

// ReportFromJSON deserialises a JSON payload that was previously generated via
// ToJSON.
func ReportFromJSON(payload []byte) (Report, error) {
	type alias Report
	var report alias
	if err := json.Unmarshal(payload, &report); err != nil {
		return Report{}, err
	}
	return Report(report), nil
}
