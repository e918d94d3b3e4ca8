package patient

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"
)

type PaymentMode string

const (
	PaymentCash  PaymentMode = "CASH"
	PaymentUPI   PaymentMode = "UPI"
	PaymentCard  PaymentMode = "CARD"
	PaymentOther PaymentMode = "OTHER"
)

func (m PaymentMode) IsValid() bool {
	switch m {
	case PaymentCash, PaymentUPI, PaymentCard, PaymentOther:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "PENDING"
	PaymentPaid    PaymentStatus = "PAID"
)

func (s PaymentStatus) IsValid() bool {
	return s == PaymentPending || s == PaymentPaid
}

// Report is the metadata for a file uploaded against a visit. The binary
// content lives on disk under StoredName; the document store only carries
// this record.
type Report struct {
	ID         string    `json:"id" bson:"_id"`
	Name       string    `json:"name" bson:"name"`
	StoredName string    `json:"stored_name" bson:"stored_name"`
	Mime       string    `json:"mime" bson:"mime"`
	Size       int64     `json:"size" bson:"size"`
	UploadedAt time.Time `json:"uploaded_at" bson:"uploaded_at"`
	URL        string    `json:"url" bson:"url"`
}

type BloodPressure struct {
	Systolic  *int `json:"systolic,omitempty" bson:"systolic,omitempty"`
	Diastolic *int `json:"diastolic,omitempty" bson:"diastolic,omitempty"`
}

type Payment struct {
	Amount *float64      `json:"amount,omitempty" bson:"amount,omitempty"`
	Mode   PaymentMode   `json:"mode" bson:"mode"`
	Status PaymentStatus `json:"status" bson:"status"`
}

// Visit is a single clinical encounter. It only exists embedded inside its
// owning patient document.
type Visit struct {
	ID   string    `json:"id" bson:"_id"`
	Date time.Time `json:"date" bson:"date"`

	// Frontdesk triage
	Symptoms string        `json:"symptoms" bson:"symptoms"`
	BP       BloodPressure `json:"bp" bson:"bp"`
	Payment  Payment       `json:"payment" bson:"payment"`
	Notes    string        `json:"notes" bson:"notes"`

	// Doctor consultation
	Diagnosis string   `json:"diagnosis" bson:"diagnosis"`
	Tests     []string `json:"tests" bson:"tests"`
	Medicines []string `json:"medicines" bson:"medicines"`
	Advice    string   `json:"advice" bson:"advice"`

	Reports []Report `json:"reports" bson:"reports"`
}

// FindReport returns the report with the given ID, if present.
func (v *Visit) FindReport(id string) (*Report, bool) {
	for i := range v.Reports {
		if v.Reports[i].ID == id {
			return &v.Reports[i], true
		}
	}
	return nil, false
}

// Patient is the aggregate root. Visits and reports are mutated through
// atomic array updates on the patient document, never by replacing the
// whole document.
type Patient struct {
	ID           string    `json:"id" bson:"_id"`
	UniqueID     string    `json:"unique_id" bson:"uniqueId"`
	Name         string    `json:"name" bson:"name"`
	Phone        string    `json:"phone" bson:"phone"`
	RegisteredAt time.Time `json:"registered_at" bson:"registeredAt"`
	Visits       []Visit   `json:"visits" bson:"visits"`
	CreatedAt    time.Time `json:"created_at" bson:"createdAt"`
	UpdatedAt    time.Time `json:"updated_at" bson:"updatedAt"`
}

// FindVisit returns the visit with the given ID, if present.
func (p *Patient) FindVisit(id string) (*Visit, bool) {
	for i := range p.Visits {
		if p.Visits[i].ID == id {
			return &p.Visits[i], true
		}
	}
	return nil, false
}

// MakeUniqueID derives the human-readable patient identifier from name and
// phone: whitespace-stripped upper-cased name, an underscore, then the
// digits of the phone number.
func MakeUniqueID(name, phone string) string {
	n := strings.ToUpper(stripSpaces(name))
	p := digitsOnly(phone)
	if n == "" || p == "" {
		return ""
	}
	return n + "_" + p
}

// NormalizePhone strips everything but digits.
func NormalizePhone(phone string) string {
	return digitsOnly(phone)
}

func stripSpaces(s string) string {
	var b strings.Builder
	for _, r := range s {
		if !unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ReportURL builds the stable download path for a report. It is derived
// from the three IDs and carries no state of its own.
func ReportURL(patientID, visitID, reportID string) string {
	return fmt.Sprintf("/api/patients/%s/visits/%s/reports/%s/download", patientID, visitID, reportID)
}

// StringList accepts either a JSON array of strings or a single
// comma-separated string. Entries are trimmed and blanks dropped, so the
// stored value is identical regardless of the input shape.
type StringList []string

func (l *StringList) UnmarshalJSON(data []byte) error {
	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		*l = SplitList(asString)
		return nil
	}
	var asSlice []string
	if err := json.Unmarshal(data, &asSlice); err != nil {
		return err
	}
	*l = cleanList(asSlice)
	return nil
}

// SplitList splits a comma-separated string into trimmed, non-empty entries.
func SplitList(s string) []string {
	return cleanList(strings.Split(s, ","))
}

func cleanList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if t := strings.TrimSpace(item); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func sortVisitsByDateDesc(visits []Visit) {
	sort.SliceStable(visits, func(i, j int) bool {
		return visits[i].Date.After(visits[j].Date)
	})
}
