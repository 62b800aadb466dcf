package record

// MealStatus is how much of a meal was eaten. Blank means not recorded.
type MealStatus string

const (
	MealFinished MealStatus = "吃完"
	MealHalf     MealStatus = "吃一半"
	MealNone     MealStatus = "未進食"
)

func (m MealStatus) Valid() bool {
	switch m {
	case "", MealFinished, MealHalf, MealNone:
		return true
	}
	return false
}

// SleepQuality is the night's sleep rating. Blank means not recorded.
type SleepQuality string

const (
	SleepGood SleepQuality = "好"
	SleepFair SleepQuality = "中"
	SleepPoor SleepQuality = "差"
)

func (s SleepQuality) Valid() bool {
	_, ok := s.Score()
	return ok || s == ""
}

// Score maps the rating onto the 1-3 scale used by the sleep chart.
func (s SleepQuality) Score() (float64, bool) {
	switch s {
	case SleepGood:
		return 3, true
	case SleepFair:
		return 2, true
	case SleepPoor:
		return 1, true
	}
	return 0, false
}

// Record is one timestamped observation of a patient. Name, room and age
// are copied from the patient when the record is entered.
type Record struct {
	ID          int64        `json:"id"`
	Name        string       `json:"name"`
	Room        string       `json:"room"`
	Age         Text         `json:"age"`
	PatientID   IntValue     `json:"patientId,omitzero"`
	Date        string       `json:"date"`
	Breakfast   MealStatus   `json:"breakfast"`
	Lunch       MealStatus   `json:"lunch"`
	Dinner      MealStatus   `json:"dinner"`
	Water       IntValue     `json:"water,omitzero"`
	Systolic    IntValue     `json:"systolic,omitzero"`
	Diastolic   IntValue     `json:"diastolic,omitzero"`
	Pulse       IntValue     `json:"pulse,omitzero"`
	Temperature FloatValue   `json:"temperature,omitzero"`
	Sleep       SleepQuality `json:"sleep"`
	Note        string       `json:"note"`
	CreatedAt   string       `json:"createdAt"`
	UpdatedAt   string       `json:"updatedAt"`
}

// Statistics summarizes the record collection. Field names are read by
// the dashboard and must stay stable.
type Statistics struct {
	TotalRecords       int            `json:"totalRecords"`
	TotalPatients      int            `json:"totalPatients"`
	RecordsByPatient   map[string]int `json:"recordsByPatient"`
	RecordsByDate      map[string]int `json:"recordsByDate"`
	AverageWaterIntake int            `json:"averageWaterIntake"`
	AverageTemperature float64        `json:"averageTemperature"`
}
