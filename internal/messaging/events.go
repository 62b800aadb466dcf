package messaging

import (
	"time"

	"github.com/google/uuid"
)

// ServiceName identifies this application as the event source.
const ServiceName = "carelog"

// Event routing keys as constants
const (
	// Patient events
	EventPatientCreated       = "patient.created"
	EventPatientUpdated       = "patient.updated"
	EventPatientStatusChanged = "patient.status_changed"

	// Care record events
	EventCareRecordCreated   = "care_record.created"
	EventCareRecordUpdated   = "care_record.updated"
	EventCareRecordDeleted   = "care_record.deleted"
	EventCareRecordsRestored = "care_record.restored"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventType   string    `json:"event_type"`
	EventID     string    `json:"event_id"`
	Timestamp   time.Time `json:"timestamp"`
	ServiceName string    `json:"service_name"`
}

// PatientEvent is published when a patient is created or edited.
type PatientEvent struct {
	BaseEvent
	Data PatientData `json:"data"`
}

type PatientData struct {
	PatientID int64  `json:"patient_id"`
	Name      string `json:"name"`
	Room      string `json:"room"`
	Status    string `json:"status"`
}

type PatientStatusChangedEvent struct {
	BaseEvent
	Data PatientStatusChangedData `json:"data"`
}

type PatientStatusChangedData struct {
	PatientID int64     `json:"patient_id"`
	Name      string    `json:"name"`
	OldStatus string    `json:"old_status"`
	NewStatus string    `json:"new_status"`
	ChangedAt time.Time `json:"changed_at"`
}

// CareRecordEvent is published when a single care record changes.
type CareRecordEvent struct {
	BaseEvent
	Data CareRecordData `json:"data"`
}

type CareRecordData struct {
	RecordID    int64  `json:"record_id"`
	PatientName string `json:"patient_name,omitempty"`
	Room        string `json:"room,omitempty"`
	Date        string `json:"date,omitempty"`
}

// CareRecordsRestoredEvent is published after a backup replaced the
// whole record collection.
type CareRecordsRestoredEvent struct {
	BaseEvent
	Data CareRecordsRestoredData `json:"data"`
}

type CareRecordsRestoredData struct {
	Count      int       `json:"count"`
	RestoredAt time.Time `json:"restored_at"`
}

// NewBaseEvent creates a base event with common fields
func NewBaseEvent(eventType string) BaseEvent {
	return BaseEvent{
		EventType:   eventType,
		EventID:     uuid.NewString(),
		Timestamp:   time.Now().UTC(),
		ServiceName: ServiceName,
	}
}
