package admin

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/lildude/stravastats/internal/errs"
	"github.com/lildude/stravastats/internal/ingest"
	"github.com/lildude/stravastats/internal/middleware"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type fakeImporter struct {
	mu      sync.Mutex
	release chan struct{}
	calls   []time.Time
	last    *ingest.ImportReport
}

func (f *fakeImporter) Import(_ context.Context, athleteID int64, after time.Time) (*ingest.ImportReport, error) {
	f.mu.Lock()
	f.calls = append(f.calls, after)
	f.mu.Unlock()
	if f.release != nil {
		<-f.release
	}
	r := &ingest.ImportReport{RunID: "run-1", AthleteID: athleteID, After: after, Imported: 3}
	f.mu.Lock()
	f.last = r
	f.mu.Unlock()
	return r, nil
}

func (f *fakeImporter) LastReport(_ context.Context, _ int64) (*ingest.ImportReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.last == nil {
		return nil, &errs.NotFoundError{Resource: "import report"}
	}
	return f.last, nil
}

func newHandler(imp Importer) *Handler {
	log := logrus.New()
	log.SetOutput(io.Discard)
	h := NewHandler(context.Background(), imp, 365, log)
	h.Now = func() time.Time { return now }
	return h
}

func request(h http.HandlerFunc, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, http.NoBody)
	req = req.WithContext(middleware.WithAthleteID(req.Context(), 7))
	rr := httptest.NewRecorder()
	h(rr, req)
	return rr
}

func TestStartImport(t *testing.T) {
	imp := &fakeImporter{}
	h := newHandler(imp)

	rr := request(h.LastImport, http.MethodGet, "/admin/import")
	assert.Equal(t, http.StatusNotFound, rr.Code, "no report before any import")

	rr = request(h.StartImport, http.MethodPost, "/admin/initial-import?days=30")
	require.Equal(t, http.StatusAccepted, rr.Code)
	h.Wait()

	require.Len(t, imp.calls, 1)
	assert.Equal(t, now.Add(-30*24*time.Hour), imp.calls[0])

	rr = request(h.LastImport, http.MethodGet, "/admin/import")
	require.Equal(t, http.StatusOK, rr.Code)
	var report ingest.ImportReport
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &report))
	assert.Equal(t, "run-1", report.RunID)
	assert.Equal(t, 3, report.Imported)
}

func TestStartImportDefaultDays(t *testing.T) {
	imp := &fakeImporter{}
	h := newHandler(imp)

	request(h.StartImport, http.MethodPost, "/admin/initial-import")
	h.Wait()

	assert.Equal(t, []time.Time{now.Add(-365 * 24 * time.Hour)}, imp.calls)
}

func TestStartImportRejectsConcurrentRun(t *testing.T) {
	imp := &fakeImporter{release: make(chan struct{})}
	h := newHandler(imp)

	require.Equal(t, http.StatusAccepted, request(h.StartImport, http.MethodPost, "/admin/initial-import").Code)
	assert.Equal(t, http.StatusConflict, request(h.StartImport, http.MethodPost, "/admin/initial-import").Code,
		"a second run is refused while the first is going")

	close(imp.release)
	h.Wait()

	imp.release = nil
	assert.Equal(t, http.StatusAccepted, request(h.StartImport, http.MethodPost, "/admin/initial-import").Code,
		"a new run starts once the first has finished")
	h.Wait()
}

func TestStartImportBadDays(t *testing.T) {
	h := newHandler(&fakeImporter{})

	for _, q := range []string{"?days=0", "?days=-1", "?days=year"} {
		rr := request(h.StartImport, http.MethodPost, "/admin/initial-import"+q)
		assert.Equal(t, http.StatusBadRequest, rr.Code, q)
	}
}
