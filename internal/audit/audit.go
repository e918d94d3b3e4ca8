package audit

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/sirupsen/logrus"
)

type EventType string

const (
	EventAccess   EventType = "ACCESS"
	EventModify   EventType = "MODIFY"
	EventDelete   EventType = "DELETE"
	EventLogin    EventType = "LOGIN"
	EventSignup   EventType = "SIGNUP"
	EventDownload EventType = "DOWNLOAD"
)

// contextKey scopes the request metadata keys to this package so they
// cannot collide with other context values.
type contextKey string

const (
	ContextUserID    contextKey = "user_id"
	ContextRequestID contextKey = "request_id"
	ContextIPAddress contextKey = "ip_address"
)

// Event is one entry in the clinic activity trail.
type Event struct {
	Timestamp  time.Time       `json:"timestamp"`
	EventType  EventType       `json:"event_type"`
	UserID     string          `json:"user_id"`
	Action     string          `json:"action"`
	Resource   string          `json:"resource"`
	ResourceID string          `json:"resource_id"`
	IPAddress  string          `json:"ip_address"`
	RequestID  string          `json:"request_id"`
	Status     string          `json:"status"`
	Details    json.RawMessage `json:"details,omitempty"`
}

// fillFromContext copies request metadata into the event. Values already
// set on the event win.
func (event *Event) fillFromContext(ctx context.Context) {
	if uid, ok := ctx.Value(ContextUserID).(string); ok && event.UserID == "" {
		event.UserID = uid
	}
	if rid, ok := ctx.Value(ContextRequestID).(string); ok && event.RequestID == "" {
		event.RequestID = rid
	}
	if ip, ok := ctx.Value(ContextIPAddress).(string); ok && event.IPAddress == "" {
		event.IPAddress = ip
	}
}

// Service records and retrieves activity events. Logging is advisory
// everywhere it is called: a failed write must never fail the request
// that produced it.
type Service interface {
	LogEvent(ctx context.Context, event *Event) error
	QueryEvents(ctx context.Context, filters map[string]interface{}, from, size int) ([]Event, error)
}

type service struct {
	es     *elasticsearch.Client
	logger *logrus.Logger
}

func NewService(esClient *elasticsearch.Client) Service {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{})
	logger.SetLevel(logrus.InfoLevel)

	return &service{
		es:     esClient,
		logger: logger,
	}
}

func (s *service) LogEvent(ctx context.Context, event *Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	event.fillFromContext(ctx)

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	// Monthly indexes keep the trail queryable without unbounded growth in
	// a single index.
	index := "clinic_audit_" + event.Timestamp.Format("2006.01")
	_, err = s.es.Index(
		index,
		strings.NewReader(string(payload)),
		s.es.Index.WithContext(ctx),
	)
	if err != nil {
		s.logger.WithError(err).Error("failed to index audit event")
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"event_type":  event.EventType,
		"action":      event.Action,
		"resource":    event.Resource,
		"resource_id": event.ResourceID,
		"user_id":     event.UserID,
		"request_id":  event.RequestID,
		"status":      event.Status,
	}).Info("audit event recorded")

	return nil
}

// QueryEvents searches the trail across all monthly indexes, newest first.
func (s *service) QueryEvents(ctx context.Context, filters map[string]interface{}, from, size int) ([]Event, error) {
	body, err := json.Marshal(searchBody(filters, from, size))
	if err != nil {
		return nil, err
	}

	res, err := s.es.Search(
		s.es.Search.WithContext(ctx),
		s.es.Search.WithIndex("clinic_audit_*"),
		s.es.Search.WithBody(strings.NewReader(string(body))),
	)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	var result struct {
		Hits struct {
			Hits []struct {
				Source Event `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return nil, err
	}

	events := make([]Event, len(result.Hits.Hits))
	for i, hit := range result.Hits.Hits {
		events[i] = hit.Source
	}
	return events, nil
}

func searchBody(filters map[string]interface{}, from, size int) map[string]interface{} {
	must := []map[string]interface{}{}
	for field, value := range filters {
		must = append(must, map[string]interface{}{
			"match": map[string]interface{}{field: value},
		})
	}

	return map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{"must": must},
		},
		"sort": []map[string]interface{}{
			{"timestamp": map[string]interface{}{"order": "desc"}},
		},
		"from": from,
		"size": size,
	}
}

// Nop returns a Service that drops every event. Used by commands and tests
// that have no Elasticsearch at hand.
func Nop() Service {
	return nopService{}
}

type nopService struct{}

func (nopService) LogEvent(context.Context, *Event) error { return nil }

func (nopService) QueryEvents(context.Context, map[string]interface{}, int, int) ([]Event, error) {
	return []Event{}, nil
}
