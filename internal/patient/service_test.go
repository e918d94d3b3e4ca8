package patient

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestCreateInputBuild(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	t.Run("derives unique id and normalizes fields", func(t *testing.T) {
		p, err := CreateInput{Name: "John Doe", Phone: "98765-432-10"}.build(now)
		require.NoError(t, err)

		assert.Equal(t, "JOHN DOE", p.Name)
		assert.Equal(t, "9876543210", p.Phone)
		assert.Equal(t, "JOHNDOE_9876543210", p.UniqueID)
		assert.Equal(t, now, p.RegisteredAt)
		assert.NotEmpty(t, p.ID)
		assert.Empty(t, p.Visits)
	})

	t.Run("keeps supplied unique id upper-cased", func(t *testing.T) {
		p, err := CreateInput{Name: "John", Phone: "9876543210", UniqueID: "custom-42"}.build(now)
		require.NoError(t, err)
		assert.Equal(t, "CUSTOM-42", p.UniqueID)
	})

	t.Run("rejects short phone", func(t *testing.T) {
		_, err := CreateInput{Name: "John", Phone: "123"}.build(now)
		assert.ErrorIs(t, err, ErrInvalidPhone)
	})

	t.Run("rejects missing name", func(t *testing.T) {
		_, err := CreateInput{Name: "   ", Phone: "9876543210"}.build(now)
		assert.ErrorIs(t, err, ErrNameRequired)
	})
}

func TestVisitInputBuildDefaults(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	v := VisitInput{}.build(now)
	assert.Equal(t, now, v.Date)
	assert.Equal(t, PaymentCash, v.Payment.Mode)
	assert.Equal(t, PaymentPending, v.Payment.Status)
	assert.NotEmpty(t, v.ID)
	assert.NotNil(t, v.Tests)
	assert.NotNil(t, v.Medicines)
	assert.NotNil(t, v.Reports)
}

func TestVisitInputBuildKeepsExplicitValues(t *testing.T) {
	now := time.Now().UTC()
	date := now.Add(-48 * time.Hour)
	amount := 250.0

	v := VisitInput{
		Date:      &date,
		Symptoms:  " Fever, Cough ",
		Payment:   PaymentInput{Amount: &amount, Mode: PaymentUPI, Status: PaymentPaid},
		Tests:     StringList{"CBC"},
		Medicines: StringList{"PARACETAMOL"},
	}.build(now)

	assert.Equal(t, date, v.Date)
	assert.Equal(t, "Fever, Cough", v.Symptoms)
	assert.Equal(t, PaymentUPI, v.Payment.Mode)
	assert.Equal(t, PaymentPaid, v.Payment.Status)
	require.NotNil(t, v.Payment.Amount)
	assert.Equal(t, 250.0, *v.Payment.Amount)
	assert.Equal(t, []string{"CBC"}, v.Tests)
	assert.Equal(t, []string{"PARACETAMOL"}, v.Medicines)
}

func TestBuildSearchFilter(t *testing.T) {
	t.Run("matches only identity fields", func(t *testing.T) {
		filter := buildSearchFilter(SearchInput{Query: "COUGH"})

		or, ok := filter["$or"].(bson.A)
		require.True(t, ok)
		require.Len(t, or, 3)

		fields := make([]string, 0, 3)
		for _, clause := range or {
			for k := range clause.(bson.M) {
				fields = append(fields, k)
			}
		}
		// Visit content (symptoms, diagnosis) is deliberately not searchable.
		assert.ElementsMatch(t, []string{"name", "phone", "uniqueId"}, fields)
	})

	t.Run("escapes regex metacharacters", func(t *testing.T) {
		filter := buildSearchFilter(SearchInput{Query: "a.b*"})
		or := filter["$or"].(bson.A)
		rx := or[0].(bson.M)["name"].(primitive.Regex)
		assert.Equal(t, `a\.b\*`, rx.Pattern)
		assert.Equal(t, "i", rx.Options)
	})

	t.Run("inclusive date range", func(t *testing.T) {
		from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		to := from.AddDate(0, 1, 0)
		filter := buildSearchFilter(SearchInput{From: &from, To: &to})

		rng, ok := filter["registeredAt"].(bson.M)
		require.True(t, ok)
		assert.Equal(t, from, rng["$gte"])
		assert.Equal(t, to, rng["$lte"])
		_, hasOr := filter["$or"]
		assert.False(t, hasOr)
	})

	t.Run("empty input means no filter", func(t *testing.T) {
		assert.Empty(t, buildSearchFilter(SearchInput{}))
	})
}

func TestAggregateUpdatesUseArrayOperators(t *testing.T) {
	now := time.Now().UTC()

	// Two concurrent visit appends on one patient must both survive, so
	// the updates target the arrays directly instead of replacing the
	// document.
	visitUpdate := appendVisitUpdate(Visit{ID: "v1"}, now)
	push, ok := visitUpdate["$push"].(bson.M)
	require.True(t, ok)
	_, hasVisits := push["visits"]
	assert.True(t, hasVisits)

	reportUpdate := appendReportUpdate(Report{ID: "r1"}, now)
	push, ok = reportUpdate["$push"].(bson.M)
	require.True(t, ok)
	_, hasReports := push["visits.$.reports"]
	assert.True(t, hasReports)

	pull, ok := pullReportUpdate("r1", now)["$pull"].(bson.M)
	require.True(t, ok)
	assert.Equal(t, bson.M{"_id": "r1"}, pull["visits.$.reports"])
}
