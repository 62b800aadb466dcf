package record

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// BackupVersion is the version stamped on every backup document.
const BackupVersion = "1.0"

// Backup is the exported snapshot of the record collection. Records are
// the stored documents as written, so fields this version does not model
// and form-entered strings such as "water":"1500" survive a round trip.
type Backup struct {
	Version      string            `json:"version"`
	ExportDate   string            `json:"exportDate"`
	TotalRecords int               `json:"totalRecords"`
	Records      []json.RawMessage `json:"records"`
}

// Snapshot is a backup document as read back for restore. Records are kept
// as raw JSON so they can be written back verbatim.
type Snapshot struct {
	Version    string
	ExportDate string
	Records    []json.RawMessage
}

// ParseSnapshot validates a backup document. Only the records array is
// required; it may be empty.
func ParseSnapshot(data []byte) (*Snapshot, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBackup, err)
	}

	raw := bytes.TrimSpace(fields["records"])
	if len(raw) == 0 || raw[0] != '[' {
		return nil, fmt.Errorf("%w: records must be an array", ErrInvalidBackup)
	}

	snap := &Snapshot{}
	if err := json.Unmarshal(raw, &snap.Records); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBackup, err)
	}
	if snap.Records == nil {
		snap.Records = []json.RawMessage{}
	}

	// informational only
	_ = json.Unmarshal(fields["version"], &snap.Version)
	_ = json.Unmarshal(fields["exportDate"], &snap.ExportDate)

	return snap, nil
}
