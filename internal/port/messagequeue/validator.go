package messagequeue

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Validate checks that data is JSON matching the schema of subject.
// Unknown subjects only need to be valid JSON.
func Validate(subject string, data []byte) error {
	if !json.Valid(data) {
		return fmt.Errorf("invalid JSON on subject %s", subject)
	}

	var target any
	switch subject {
	case SubjectMaintenanceReport:
		target = &MaintenanceReportPayload{}
	case SubjectCacheInvalidated:
		target = &CacheInvalidatedPayload{}
	default:
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		return fmt.Errorf("schema validation failed for %s: %w", subject, err)
	}
	return nil
}
