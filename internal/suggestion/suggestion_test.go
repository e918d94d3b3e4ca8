package suggestion

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "FEVER", Normalize(" fever "))
	assert.Equal(t, "DRY COUGH", Normalize("Dry Cough"))
	assert.Equal(t, "", Normalize("   "))
}

func TestTypeIsValid(t *testing.T) {
	assert.True(t, TypeSymptom.IsValid())
	assert.True(t, TypeMedicine.IsValid())
	assert.False(t, Type("DIAGNOSIS").IsValid())
	assert.False(t, Type("").IsValid())
}

func TestPrefixPatternEscapesMetacharacters(t *testing.T) {
	pattern := prefixPattern("b12 (inj.)")
	rx, err := regexp.Compile("(?i)" + pattern)
	require.NoError(t, err)

	// The literal prefix matches; the metacharacters don't act as wildcards.
	assert.True(t, rx.MatchString("B12 (INJ.) 500MCG"))
	assert.False(t, rx.MatchString("B12 XINJYZ"))
}

func TestPrefixPatternAnchorsAtStart(t *testing.T) {
	rx := regexp.MustCompile(prefixPattern("FE"))
	assert.True(t, rx.MatchString("FEVER"))
	assert.False(t, rx.MatchString("COFFEE"))
}

func TestUpsertUpdateIsSingleConditionalIncrement(t *testing.T) {
	now := time.Now().UTC()
	update := upsertUpdate(now)

	// One atomic increment per observation; concurrent callers on the same
	// key must both land.
	inc, ok := update["$inc"].(bson.M)
	require.True(t, ok)
	assert.Equal(t, 1, inc["count"])

	onInsert, ok := update["$setOnInsert"].(bson.M)
	require.True(t, ok)
	assert.Equal(t, now, onInsert["createdAt"])

	// Count is never written absolutely, only incremented.
	set := update["$set"].(bson.M)
	_, overwritesCount := set["count"]
	assert.False(t, overwritesCount)
}
