package patient

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/mesikahq/clinic-desk/internal/audit"
	"github.com/mesikahq/clinic-desk/internal/suggestion"
)

var (
	ErrPatientNotFound  = errors.New("patient not found")
	ErrVisitNotFound    = errors.New("visit not found")
	ErrReportNotFound   = errors.New("report not found")
	ErrDuplicatePatient = errors.New("patient with this unique id already exists")
	ErrNameRequired     = errors.New("name is required")
	ErrInvalidPhone     = errors.New("phone must be exactly 10 digits")
)

// maxSearchResults caps the search response; there is no pagination cursor.
const maxSearchResults = 500

type CreateInput struct {
	Name     string `json:"name" binding:"required"`
	Phone    string `json:"phone" binding:"required"`
	UniqueID string `json:"unique_id"`
}

// build validates the input and produces a fresh patient document. The
// phone is normalized to digits and must be exactly 10 of them; the unique
// ID is derived from (name, phone) unless the caller supplied one, in which
// case it is upper-cased and kept as-is.
func (in CreateInput) build(now time.Time) (*Patient, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, ErrNameRequired
	}

	phone := NormalizePhone(in.Phone)
	if len(phone) != 10 {
		return nil, ErrInvalidPhone
	}

	name = strings.ToUpper(name)
	uniqueID := strings.ToUpper(strings.TrimSpace(in.UniqueID))
	if uniqueID == "" {
		uniqueID = MakeUniqueID(name, phone)
	}

	return &Patient{
		ID:           uuid.New().String(),
		UniqueID:     uniqueID,
		Name:         name,
		Phone:        phone,
		RegisteredAt: now,
		Visits:       []Visit{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

type VisitInput struct {
	Date      *time.Time    `json:"date"`
	Symptoms  string        `json:"symptoms"`
	BP        BloodPressure `json:"bp"`
	Payment   PaymentInput  `json:"payment"`
	Notes     string        `json:"notes"`
	Diagnosis string        `json:"diagnosis"`
	Tests     StringList    `json:"tests"`
	Medicines StringList    `json:"medicines"`
	Advice    string        `json:"advice"`
}

type PaymentInput struct {
	Amount *float64      `json:"amount"`
	Mode   PaymentMode   `json:"mode"`
	Status PaymentStatus `json:"status"`
}

// build normalizes the visit at the write boundary: date defaults to now,
// payment mode/status default to CASH/PENDING, list fields arrive already
// split and trimmed via StringList.
func (in VisitInput) build(now time.Time) Visit {
	date := now
	if in.Date != nil && !in.Date.IsZero() {
		date = *in.Date
	}

	mode := in.Payment.Mode
	if !mode.IsValid() {
		mode = PaymentCash
	}
	status := in.Payment.Status
	if !status.IsValid() {
		status = PaymentPending
	}

	tests := in.Tests
	if tests == nil {
		tests = StringList{}
	}
	medicines := in.Medicines
	if medicines == nil {
		medicines = StringList{}
	}

	return Visit{
		ID:       uuid.New().String(),
		Date:     date,
		Symptoms: strings.TrimSpace(in.Symptoms),
		BP:       in.BP,
		Payment: Payment{
			Amount: in.Payment.Amount,
			Mode:   mode,
			Status: status,
		},
		Notes:     in.Notes,
		Diagnosis: in.Diagnosis,
		Tests:     []string(tests),
		Medicines: []string(medicines),
		Advice:    in.Advice,
		Reports:   []Report{},
	}
}

type SearchInput struct {
	Query string
	From  *time.Time
	To    *time.Time
}

// buildSearchFilter matches the query case-insensitively against name,
// phone and uniqueId only; visit content is never searchable here. The
// query is regex-escaped so pattern metacharacters are taken literally.
func buildSearchFilter(in SearchInput) bson.M {
	filter := bson.M{}

	if in.Query != "" {
		rx := primitive.Regex{Pattern: regexp.QuoteMeta(in.Query), Options: "i"}
		filter["$or"] = bson.A{
			bson.M{"name": rx},
			bson.M{"phone": rx},
			bson.M{"uniqueId": rx},
		}
	}

	if in.From != nil || in.To != nil {
		rng := bson.M{}
		if in.From != nil {
			rng["$gte"] = *in.From
		}
		if in.To != nil {
			rng["$lte"] = *in.To
		}
		filter["registeredAt"] = rng
	}

	return filter
}

// VisitList is the read model for a patient's visit history.
type VisitList struct {
	PatientID string  `json:"patient_id"`
	UniqueID  string  `json:"unique_id"`
	Name      string  `json:"name"`
	Visits    []Visit `json:"visits"`
}

type Service interface {
	Create(ctx context.Context, in CreateInput) (*Patient, error)
	Get(ctx context.Context, id string) (*Patient, error)
	Search(ctx context.Context, in SearchInput) ([]*Patient, error)
	AddVisit(ctx context.Context, patientID string, in VisitInput) (*Patient, error)
	ListVisits(ctx context.Context, patientID string) (*VisitList, error)
	AddReport(ctx context.Context, patientID, visitID string, report Report) (*Visit, error)
	GetReport(ctx context.Context, patientID, visitID, reportID string) (*Report, error)
	ListReports(ctx context.Context, patientID, visitID string) ([]Report, error)
	RemoveReport(ctx context.Context, patientID, visitID, reportID string) (*Report, error)
}

type service struct {
	col         *mongo.Collection
	suggestions suggestion.Service
	audit       audit.Service
	logger      *zap.Logger
}

func NewService(db *mongo.Database, suggestions suggestion.Service, auditService audit.Service, logger *zap.Logger) Service {
	return &service{
		col:         db.Collection("patients"),
		suggestions: suggestions,
		audit:       auditService,
		logger:      logger,
	}
}

func (s *service) Create(ctx context.Context, in CreateInput) (*Patient, error) {
	p, err := in.build(time.Now().UTC())
	if err != nil {
		return nil, err
	}

	if _, err := s.col.InsertOne(ctx, p); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicatePatient, p.UniqueID)
		}
		return nil, fmt.Errorf("failed to insert patient: %w", err)
	}

	s.audit.LogEvent(ctx, &audit.Event{
		EventType:  audit.EventModify,
		Action:     "CREATE",
		Resource:   "patient",
		ResourceID: p.ID,
		Status:     "success",
	})

	return p, nil
}

func (s *service) Get(ctx context.Context, id string) (*Patient, error) {
	var p Patient
	err := s.col.FindOne(ctx, bson.M{"_id": id}).Decode(&p)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrPatientNotFound
		}
		return nil, fmt.Errorf("failed to fetch patient: %w", err)
	}
	return &p, nil
}

func (s *service) Search(ctx context.Context, in SearchInput) ([]*Patient, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "registeredAt", Value: -1}}).
		SetLimit(maxSearchResults)

	cursor, err := s.col.Find(ctx, buildSearchFilter(in), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to search patients: %w", err)
	}
	defer cursor.Close(ctx)

	patients := make([]*Patient, 0)
	if err := cursor.All(ctx, &patients); err != nil {
		return nil, fmt.Errorf("failed to decode patients: %w", err)
	}
	return patients, nil
}

// The aggregate is mutated with targeted array operators, never by
// replacing the whole document: a concurrent AddVisit or report change on
// the same patient must not be lost to a last-writer-wins overwrite.

func appendVisitUpdate(visit Visit, now time.Time) bson.M {
	return bson.M{
		"$push": bson.M{"visits": visit},
		"$set":  bson.M{"updatedAt": now},
	}
}

func appendReportUpdate(report Report, now time.Time) bson.M {
	return bson.M{
		"$push": bson.M{"visits.$.reports": report},
		"$set":  bson.M{"updatedAt": now},
	}
}

func pullReportUpdate(reportID string, now time.Time) bson.M {
	return bson.M{
		"$pull": bson.M{"visits.$.reports": bson.M{"_id": reportID}},
		"$set":  bson.M{"updatedAt": now},
	}
}

func (s *service) AddVisit(ctx context.Context, patientID string, in VisitInput) (*Patient, error) {
	visit := in.build(time.Now().UTC())

	update := appendVisitUpdate(visit, time.Now().UTC())
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var p Patient
	err := s.col.FindOneAndUpdate(ctx, bson.M{"_id": patientID}, update, opts).Decode(&p)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrPatientNotFound
		}
		return nil, fmt.Errorf("failed to append visit: %w", err)
	}

	s.recordSuggestions(ctx, visit)

	s.audit.LogEvent(ctx, &audit.Event{
		EventType:  audit.EventModify,
		Action:     "ADD_VISIT",
		Resource:   "patient",
		ResourceID: patientID,
		Status:     "success",
	})

	return &p, nil
}

// recordSuggestions feeds the autocomplete index from the visit's free-text
// fields. The visit is already durable; a failure here is logged and
// otherwise ignored.
func (s *service) recordSuggestions(ctx context.Context, visit Visit) {
	if visit.Symptoms != "" {
		if _, err := s.suggestions.BulkUpsert(ctx, suggestion.TypeSymptom, SplitList(visit.Symptoms)); err != nil {
			s.logger.Warn("symptom suggestion upsert failed", zap.Error(err))
		}
	}
	if len(visit.Medicines) > 0 {
		if _, err := s.suggestions.BulkUpsert(ctx, suggestion.TypeMedicine, visit.Medicines); err != nil {
			s.logger.Warn("medicine suggestion upsert failed", zap.Error(err))
		}
	}
}

func (s *service) ListVisits(ctx context.Context, patientID string) (*VisitList, error) {
	p, err := s.Get(ctx, patientID)
	if err != nil {
		return nil, err
	}

	visits := make([]Visit, len(p.Visits))
	copy(visits, p.Visits)
	sortVisitsByDateDesc(visits)

	return &VisitList{
		PatientID: p.ID,
		UniqueID:  p.UniqueID,
		Name:      p.Name,
		Visits:    visits,
	}, nil
}

func (s *service) AddReport(ctx context.Context, patientID, visitID string, report Report) (*Visit, error) {
	// Positional update into the matched visit's reports array.
	filter := bson.M{"_id": patientID, "visits._id": visitID}
	update := appendReportUpdate(report, time.Now().UTC())
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var p Patient
	err := s.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&p)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, s.visitLookupError(ctx, patientID)
		}
		return nil, fmt.Errorf("failed to append report: %w", err)
	}

	visit, ok := p.FindVisit(visitID)
	if !ok {
		return nil, ErrVisitNotFound
	}

	s.audit.LogEvent(ctx, &audit.Event{
		EventType:  audit.EventModify,
		Action:     "ADD_REPORT",
		Resource:   "visit",
		ResourceID: visitID,
		Status:     "success",
	})

	return visit, nil
}

func (s *service) GetReport(ctx context.Context, patientID, visitID, reportID string) (*Report, error) {
	p, err := s.Get(ctx, patientID)
	if err != nil {
		return nil, err
	}
	visit, ok := p.FindVisit(visitID)
	if !ok {
		return nil, ErrVisitNotFound
	}
	report, ok := visit.FindReport(reportID)
	if !ok {
		return nil, ErrReportNotFound
	}
	return report, nil
}

func (s *service) ListReports(ctx context.Context, patientID, visitID string) ([]Report, error) {
	p, err := s.Get(ctx, patientID)
	if err != nil {
		return nil, err
	}
	visit, ok := p.FindVisit(visitID)
	if !ok {
		return nil, ErrVisitNotFound
	}
	if visit.Reports == nil {
		return []Report{}, nil
	}
	return visit.Reports, nil
}

func (s *service) RemoveReport(ctx context.Context, patientID, visitID, reportID string) (*Report, error) {
	// Look up the metadata first so the caller can release the stored file,
	// then pull the sub-document atomically.
	report, err := s.GetReport(ctx, patientID, visitID, reportID)
	if err != nil {
		return nil, err
	}

	filter := bson.M{"_id": patientID, "visits._id": visitID}
	update := pullReportUpdate(reportID, time.Now().UTC())
	if _, err := s.col.UpdateOne(ctx, filter, update); err != nil {
		return nil, fmt.Errorf("failed to remove report: %w", err)
	}

	s.audit.LogEvent(ctx, &audit.Event{
		EventType:  audit.EventDelete,
		Action:     "DELETE_REPORT",
		Resource:   "report",
		ResourceID: reportID,
		Status:     "success",
	})

	return report, nil
}

// visitLookupError distinguishes a missing patient from a missing visit
// after a positional update matched nothing.
func (s *service) visitLookupError(ctx context.Context, patientID string) error {
	if _, err := s.Get(ctx, patientID); err != nil {
		return err
	}
	return ErrVisitNotFound
}
