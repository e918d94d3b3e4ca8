package suggestion

import (
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Type string

const (
	TypeSymptom  Type = "SYMPTOM"
	TypeMedicine Type = "MEDICINE"
)

func (t Type) IsValid() bool {
	return t == TypeSymptom || t == TypeMedicine
}

// Suggestion is one tally row of the autocomplete index, unique per
// (type, text). Count only ever goes up.
type Suggestion struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Type      Type               `json:"type" bson:"type"`
	Text      string             `json:"text" bson:"text"`
	Count     int64              `json:"count" bson:"count"`
	CreatedAt time.Time          `json:"created_at" bson:"createdAt"`
	UpdatedAt time.Time          `json:"updated_at" bson:"updatedAt"`
}

// Normalize trims and upper-cases free text into index form.
func Normalize(text string) string {
	return strings.ToUpper(strings.TrimSpace(text))
}

// prefixPattern anchors the normalized prefix and escapes regex
// metacharacters so user input is never interpreted as a wildcard
// expression.
func prefixPattern(prefix string) string {
	return "^" + regexp.QuoteMeta(Normalize(prefix))
}
