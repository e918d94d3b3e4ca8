package report

import (
	"bytes"
	"context"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mesikahq/clinic-desk/internal/audit"
	"github.com/mesikahq/clinic-desk/internal/patient"
	"github.com/mesikahq/clinic-desk/internal/storage"
)

// fakePatients is an in-memory stand-in for the patient service holding a
// single patient with a single visit.
type fakePatients struct {
	patient patient.Patient
}

func newFakePatients() *fakePatients {
	return &fakePatients{patient: patient.Patient{
		ID:     "p1",
		Visits: []patient.Visit{{ID: "v1", Reports: []patient.Report{}}},
	}}
}

func (f *fakePatients) visit(patientID, visitID string) (*patient.Visit, error) {
	if patientID != f.patient.ID {
		return nil, patient.ErrPatientNotFound
	}
	v, ok := f.patient.FindVisit(visitID)
	if !ok {
		return nil, patient.ErrVisitNotFound
	}
	return v, nil
}

func (f *fakePatients) AddReport(_ context.Context, patientID, visitID string, rec patient.Report) (*patient.Visit, error) {
	v, err := f.visit(patientID, visitID)
	if err != nil {
		return nil, err
	}
	v.Reports = append(v.Reports, rec)
	return v, nil
}

func (f *fakePatients) GetReport(_ context.Context, patientID, visitID, reportID string) (*patient.Report, error) {
	v, err := f.visit(patientID, visitID)
	if err != nil {
		return nil, err
	}
	rec, ok := v.FindReport(reportID)
	if !ok {
		return nil, patient.ErrReportNotFound
	}
	return rec, nil
}

func (f *fakePatients) ListReports(_ context.Context, patientID, visitID string) ([]patient.Report, error) {
	v, err := f.visit(patientID, visitID)
	if err != nil {
		return nil, err
	}
	return v.Reports, nil
}

func (f *fakePatients) RemoveReport(ctx context.Context, patientID, visitID, reportID string) (*patient.Report, error) {
	v, err := f.visit(patientID, visitID)
	if err != nil {
		return nil, err
	}
	for i := range v.Reports {
		if v.Reports[i].ID == reportID {
			rec := v.Reports[i]
			v.Reports = append(v.Reports[:i], v.Reports[i+1:]...)
			return &rec, nil
		}
	}
	return nil, patient.ErrReportNotFound
}

func (f *fakePatients) Create(context.Context, patient.CreateInput) (*patient.Patient, error) {
	panic("not used")
}
func (f *fakePatients) Get(context.Context, string) (*patient.Patient, error) { panic("not used") }
func (f *fakePatients) Search(context.Context, patient.SearchInput) ([]*patient.Patient, error) {
	panic("not used")
}
func (f *fakePatients) AddVisit(context.Context, string, patient.VisitInput) (*patient.Patient, error) {
	panic("not used")
}
func (f *fakePatients) ListVisits(context.Context, string) (*patient.VisitList, error) {
	panic("not used")
}

func newTestService(t *testing.T) (Service, *fakePatients, *storage.Store) {
	t.Helper()
	store, err := storage.NewStore(t.TempDir())
	require.NoError(t, err)
	patients := newFakePatients()
	svc := NewService(patients, store, audit.Nop(), zap.NewNop())
	return svc, patients, store
}

func TestUploadDownloadRoundTrip(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	content := []byte("xray bytes")

	reports, err := svc.Upload(ctx, "p1", "v1", UploadInput{
		FileName: "xray.png",
		Mime:     "image/png",
		Content:  bytes.NewReader(content),
	})
	require.NoError(t, err)
	require.Len(t, reports, 1)

	rec := reports[0]
	assert.Equal(t, "xray.png", rec.Name)
	assert.Equal(t, "image/png", rec.Mime)
	assert.Equal(t, int64(len(content)), rec.Size)
	assert.Equal(t, patient.ReportURL("p1", "v1", rec.ID), rec.URL)

	got, rc, err := svc.Download(ctx, "p1", "v1", rec.ID)
	require.NoError(t, err)
	defer rc.Close()

	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, content, body)
	assert.Equal(t, "image/png", got.Mime)
}

func TestUploadPrefersDisplayName(t *testing.T) {
	svc, _, _ := newTestService(t)

	reports, err := svc.Upload(context.Background(), "p1", "v1", UploadInput{
		FileName:    "raw-scan-001.pdf",
		DisplayName: "Blood Report",
		Mime:        "application/pdf",
		Content:     strings.NewReader("pdf"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Blood Report", reports[0].Name)
}

func TestUploadNoContent(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Upload(context.Background(), "p1", "v1", UploadInput{FileName: "a.txt"})
	assert.ErrorIs(t, err, ErrNoFile)

	_, err = svc.Upload(context.Background(), "p1", "v1", UploadInput{
		FileName: "a.txt",
		Content:  strings.NewReader(""),
	})
	assert.ErrorIs(t, err, ErrNoFile)
}

func TestUploadUnknownVisitCleansUpFile(t *testing.T) {
	svc, _, store := newTestService(t)

	_, err := svc.Upload(context.Background(), "p1", "nope", UploadInput{
		FileName: "a.txt",
		Content:  strings.NewReader("data"),
	})
	assert.ErrorIs(t, err, patient.ErrVisitNotFound)

	// No orphaned bytes left behind.
	entries, err := os.ReadDir(store.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDeleteSwallowsMissingFile(t *testing.T) {
	svc, _, store := newTestService(t)
	ctx := context.Background()

	reports, err := svc.Upload(ctx, "p1", "v1", UploadInput{
		FileName: "gone.txt",
		Content:  strings.NewReader("data"),
	})
	require.NoError(t, err)
	rec := reports[0]

	// Simulate the file disappearing out from under us.
	require.NoError(t, store.Remove(rec.StoredName))

	assert.NoError(t, svc.Delete(ctx, "p1", "v1", rec.ID))

	list, err := svc.List(ctx, "p1", "v1")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestDownloadMissingFileIsNotFound(t *testing.T) {
	svc, _, store := newTestService(t)
	ctx := context.Background()

	reports, err := svc.Upload(ctx, "p1", "v1", UploadInput{
		FileName: "x.txt",
		Content:  strings.NewReader("data"),
	})
	require.NoError(t, err)
	require.NoError(t, store.Remove(reports[0].StoredName))

	_, _, err = svc.Download(ctx, "p1", "v1", reports[0].ID)
	assert.ErrorIs(t, err, patient.ErrReportNotFound)
}
