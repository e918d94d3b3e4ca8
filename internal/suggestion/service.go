package suggestion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrInvalidType = errors.New("type must be SYMPTOM or MEDICINE")
	ErrEmptyText   = errors.New("text is required")
)

const maxQueryResults = 10

// BulkResult reports how an unordered batch landed.
type BulkResult struct {
	Upserted int64 `json:"upserted"`
	Modified int64 `json:"modified"`
}

type Service interface {
	Upsert(ctx context.Context, typ Type, text string) (*Suggestion, error)
	BulkUpsert(ctx context.Context, typ Type, texts []string) (*BulkResult, error)
	Query(ctx context.Context, typ Type, prefix string) ([]string, error)
}

type service struct {
	col *mongo.Collection
}

func NewService(db *mongo.Database) Service {
	return &service{col: db.Collection("suggestions")}
}

// upsertUpdate is the single conditional update applied for one key:
// insert with count 1 or increment in place. Splitting this into a read
// followed by a write would lose increments under concurrent callers
// hitting the same key.
func upsertUpdate(now time.Time) bson.M {
	return bson.M{
		"$inc":         bson.M{"count": 1},
		"$set":         bson.M{"updatedAt": now},
		"$setOnInsert": bson.M{"createdAt": now},
	}
}

// Upsert creates the (type, text) row with count 1 or bumps its count by
// one, as a single atomic operation.
func (s *service) Upsert(ctx context.Context, typ Type, text string) (*Suggestion, error) {
	if !typ.IsValid() {
		return nil, ErrInvalidType
	}
	text = Normalize(text)
	if text == "" {
		return nil, ErrEmptyText
	}

	filter := bson.M{"type": typ, "text": text}
	update := upsertUpdate(time.Now().UTC())
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var doc Suggestion
	if err := s.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to upsert suggestion: %w", err)
	}
	return &doc, nil
}

// BulkUpsert applies Upsert semantics to every normalized, non-blank token.
// The batch is unordered, so one failing key does not abort the rest.
func (s *service) BulkUpsert(ctx context.Context, typ Type, texts []string) (*BulkResult, error) {
	if !typ.IsValid() {
		return nil, ErrInvalidType
	}

	now := time.Now().UTC()
	models := make([]mongo.WriteModel, 0, len(texts))
	for _, text := range texts {
		text = Normalize(text)
		if text == "" {
			continue
		}
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"type": typ, "text": text}).
			SetUpdate(upsertUpdate(now)).
			SetUpsert(true))
	}
	if len(models) == 0 {
		return &BulkResult{}, nil
	}

	res, err := s.col.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	if err != nil {
		return nil, fmt.Errorf("failed to bulk upsert suggestions: %w", err)
	}
	return &BulkResult{Upserted: res.UpsertedCount, Modified: res.ModifiedCount}, nil
}

// Query returns up to ten texts starting with the given prefix,
// most-used first, alphabetical on ties.
func (s *service) Query(ctx context.Context, typ Type, prefix string) ([]string, error) {
	if !typ.IsValid() {
		return nil, ErrInvalidType
	}

	filter := bson.M{
		"type": typ,
		"text": primitive.Regex{Pattern: prefixPattern(prefix), Options: "i"},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "count", Value: -1}, {Key: "text", Value: 1}}).
		SetLimit(maxQueryResults)

	cursor, err := s.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query suggestions: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []Suggestion
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode suggestions: %w", err)
	}

	texts := make([]string, 0, len(rows))
	for _, row := range rows {
		texts = append(texts, row.Text)
	}
	return texts, nil
}
