package patient

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Status is the lifecycle state of a patient. Patients are never removed;
// deleting one moves it to StatusInactive.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

func (s Status) Valid() bool {
	return s == StatusActive || s == StatusInactive
}

// Age is kept as entered. Rows written by other clients may carry a JSON
// number instead of a string.
type Age string

func (a *Age) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] != '"' {
		if string(b) == "null" {
			*a = ""
			return nil
		}
		*a = Age(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*a = Age(s)
	return nil
}

// Years returns the whole number of years, if the age is numeric.
func (a Age) Years() (int, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(string(a)), 64)
	if err != nil {
		return 0, false
	}
	return int(f), true
}

// Patient is a resident of the facility.
type Patient struct {
	ID               int64  `json:"id"`
	Name             string `json:"name"`
	Age              Age    `json:"age"`
	Room             string `json:"room"`
	Gender           string `json:"gender,omitempty"`
	Diagnosis        string `json:"diagnosis,omitempty"`
	Notes            string `json:"notes,omitempty"`
	EmergencyContact string `json:"emergencyContact,omitempty"`
	EmergencyPhone   string `json:"emergencyPhone,omitempty"`
	Status           Status `json:"status"`
	CreatedAt        string `json:"createdAt"`
	UpdatedAt        string `json:"updatedAt"`
}

// CreatePatientRequest represents the request to create a new patient
type CreatePatientRequest struct {
	Name             string `json:"name"`
	Age              Age    `json:"age"`
	Room             string `json:"room"`
	Gender           string `json:"gender,omitempty"`
	Diagnosis        string `json:"diagnosis,omitempty"`
	Notes            string `json:"notes,omitempty"`
	EmergencyContact string `json:"emergencyContact,omitempty"`
	EmergencyPhone   string `json:"emergencyPhone,omitempty"`
}

// UpdatePatientRequest carries the fields to change. Nil fields keep their
// stored value.
type UpdatePatientRequest struct {
	Name             *string `json:"name,omitempty"`
	Age              *Age    `json:"age,omitempty"`
	Room             *string `json:"room,omitempty"`
	Gender           *string `json:"gender,omitempty"`
	Diagnosis        *string `json:"diagnosis,omitempty"`
	Notes            *string `json:"notes,omitempty"`
	EmergencyContact *string `json:"emergencyContact,omitempty"`
	EmergencyPhone   *string `json:"emergencyPhone,omitempty"`
	Status           *Status `json:"status,omitempty"`
}

func (r UpdatePatientRequest) applyTo(p *Patient) {
	if r.Name != nil {
		p.Name = *r.Name
	}
	if r.Age != nil {
		p.Age = *r.Age
	}
	if r.Room != nil {
		p.Room = *r.Room
	}
	if r.Gender != nil {
		p.Gender = *r.Gender
	}
	if r.Diagnosis != nil {
		p.Diagnosis = *r.Diagnosis
	}
	if r.Notes != nil {
		p.Notes = *r.Notes
	}
	if r.EmergencyContact != nil {
		p.EmergencyContact = *r.EmergencyContact
	}
	if r.EmergencyPhone != nil {
		p.EmergencyPhone = *r.EmergencyPhone
	}
	if r.Status != nil {
		p.Status = *r.Status
	}
}

// Statistics summarizes the patient collection. Field names are read by
// the management screen and must stay stable.
type Statistics struct {
	TotalPatients    int            `json:"totalPatients"`
	ActivePatients   int            `json:"activePatients"`
	InactivePatients int            `json:"inactivePatients"`
	PatientsByRoom   map[string]int `json:"patientsByRoom"`
	AverageAge       int            `json:"averageAge"`
}
