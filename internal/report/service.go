// Package report implements the upload/download/delete lifecycle of visit
// report files, tying the patient aggregate to the file store.
package report

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mesikahq/clinic-desk/internal/audit"
	"github.com/mesikahq/clinic-desk/internal/patient"
	"github.com/mesikahq/clinic-desk/internal/storage"
)

var ErrNoFile = errors.New("no file provided")

type UploadInput struct {
	FileName    string
	DisplayName string
	Mime        string
	Content     io.Reader
}

type Service interface {
	Upload(ctx context.Context, patientID, visitID string, in UploadInput) ([]patient.Report, error)
	List(ctx context.Context, patientID, visitID string) ([]patient.Report, error)
	Download(ctx context.Context, patientID, visitID, reportID string) (*patient.Report, io.ReadCloser, error)
	Delete(ctx context.Context, patientID, visitID, reportID string) error
}

type service struct {
	patients patient.Service
	files    *storage.Store
	audit    audit.Service
	logger   *zap.Logger
}

func NewService(patients patient.Service, files *storage.Store, auditService audit.Service, logger *zap.Logger) Service {
	return &service{
		patients: patients,
		files:    files,
		audit:    auditService,
		logger:   logger,
	}
}

func (s *service) Upload(ctx context.Context, patientID, visitID string, in UploadInput) ([]patient.Report, error) {
	if in.Content == nil {
		return nil, ErrNoFile
	}

	storedName, size, err := s.files.Save(in.FileName, in.Content)
	if err != nil {
		if errors.Is(err, storage.ErrEmptyFile) {
			return nil, ErrNoFile
		}
		return nil, err
	}

	name := in.DisplayName
	if name == "" {
		name = in.FileName
	}
	if name == "" {
		name = storedName
	}

	reportID := uuid.New().String()
	rec := patient.Report{
		ID:         reportID,
		Name:       name,
		StoredName: storedName,
		Mime:       in.Mime,
		Size:       size,
		UploadedAt: time.Now().UTC(),
		URL:        patient.ReportURL(patientID, visitID, reportID),
	}

	visit, err := s.patients.AddReport(ctx, patientID, visitID, rec)
	if err != nil {
		// The metadata never landed; don't leave the bytes orphaned.
		if rmErr := s.files.Remove(storedName); rmErr != nil {
			s.logger.Warn("failed to clean up orphaned report file",
				zap.String("stored_name", storedName), zap.Error(rmErr))
		}
		return nil, err
	}

	return visit.Reports, nil
}

func (s *service) List(ctx context.Context, patientID, visitID string) ([]patient.Report, error) {
	return s.patients.ListReports(ctx, patientID, visitID)
}

func (s *service) Download(ctx context.Context, patientID, visitID, reportID string) (*patient.Report, io.ReadCloser, error) {
	rec, err := s.patients.GetReport(ctx, patientID, visitID, reportID)
	if err != nil {
		return nil, nil, err
	}

	f, err := s.files.Open(rec.StoredName)
	if err != nil {
		if errors.Is(err, storage.ErrFileMissing) {
			return nil, nil, patient.ErrReportNotFound
		}
		return nil, nil, err
	}

	s.audit.LogEvent(ctx, &audit.Event{
		EventType:  audit.EventDownload,
		Action:     "DOWNLOAD",
		Resource:   "report",
		ResourceID: reportID,
		Status:     "success",
	})

	return rec, f, nil
}

// Delete removes the report metadata, then makes a best-effort attempt at
// the underlying file. A file already missing on disk never fails the
// operation.
func (s *service) Delete(ctx context.Context, patientID, visitID, reportID string) error {
	rec, err := s.patients.RemoveReport(ctx, patientID, visitID, reportID)
	if err != nil {
		return err
	}

	if err := s.files.Remove(rec.StoredName); err != nil {
		s.logger.Warn("failed to remove report file",
			zap.String("stored_name", rec.StoredName), zap.Error(err))
	}

	return nil
}
