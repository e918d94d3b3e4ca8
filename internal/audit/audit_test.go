package audit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFillFromContextUsesTypedKeys(t *testing.T) {
	ctx := context.WithValue(context.Background(), ContextUserID, "u1")
	ctx = context.WithValue(ctx, ContextRequestID, "req-1")
	ctx = context.WithValue(ctx, ContextIPAddress, "10.0.0.1")

	event := &Event{}
	event.fillFromContext(ctx)

	assert.Equal(t, "u1", event.UserID)
	assert.Equal(t, "req-1", event.RequestID)
	assert.Equal(t, "10.0.0.1", event.IPAddress)
}

func TestFillFromContextKeepsExplicitValues(t *testing.T) {
	ctx := context.WithValue(context.Background(), ContextUserID, "from-ctx")

	event := &Event{UserID: "explicit"}
	event.fillFromContext(ctx)

	assert.Equal(t, "explicit", event.UserID)
}

func TestSearchBodyShape(t *testing.T) {
	body := searchBody(map[string]interface{}{"user_id": "u1"}, 20, 5)

	assert.Equal(t, 20, body["from"])
	assert.Equal(t, 5, body["size"])

	sort, ok := body["sort"].([]map[string]interface{})
	require.True(t, ok)
	require.Len(t, sort, 1)
	assert.Equal(t, map[string]interface{}{"order": "desc"}, sort[0]["timestamp"])

	query := body["query"].(map[string]interface{})
	boolQuery := query["bool"].(map[string]interface{})
	must := boolQuery["must"].([]map[string]interface{})
	require.Len(t, must, 1)
	assert.Equal(t, map[string]interface{}{"user_id": "u1"}, must[0]["match"])
}

func TestSearchBodyNoFilters(t *testing.T) {
	body := searchBody(nil, 0, 50)

	query := body["query"].(map[string]interface{})
	boolQuery := query["bool"].(map[string]interface{})
	assert.Empty(t, boolQuery["must"])
}

func TestNopQueryEventsIsEmpty(t *testing.T) {
	events, err := Nop().QueryEvents(context.Background(), nil, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}
