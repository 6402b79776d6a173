package delivery

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// FailureRecord captures a batch that exhausted delivery attempts, durable
// enough to resubmit by hand.
type FailureRecord struct {
	Timestamp time.Time  `json:"timestamp"`
	Error     string     `json:"error"`
	Entries   []LogEntry `json:"entries"`
}

// AppendFailure appends a record to the failure file, creating it if
// absent. Existing records are preserved; the file is never truncated.
func AppendFailure(path string, rec FailureRecord) error {
	var records []FailureRecord
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &records); err != nil {
			return fmt.Errorf("parse existing failure file %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// First failure; the file is created below.
	default:
		return fmt.Errorf("read failure file %s: %w", path, err)
	}

	records = append(records, rec)
	payload, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal failure records: %w", err)
	}
	if err := os.WriteFile(path, payload, 0o600); err != nil {
		return fmt.Errorf("write failure file %s: %w", path, err)
	}
	return nil
}

// ReadFailures loads the failure file; a missing file yields no records.
func ReadFailures(path string) ([]FailureRecord, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read failure file %s: %w", path, err)
	}
	var records []FailureRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse failure file %s: %w", path, err)
	}
	return records, nil
}
