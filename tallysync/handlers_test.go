package tallysync

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func newSyncRouter(coord *Coordinator) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/api/sync/start", StartSyncHandler(coord))
	r.GET("/api/sync/progress", ProgressHandler(coord))
	return r
}

func TestStartSyncHandlerAccepted(t *testing.T) {
	coord := NewCoordinator(nil, nil, &fakeInvalidator{}, nil, testLogger())
	coord.StepRunner = noopSteps
	coord.Recompute = noopRecompute
	r := newSyncRouter(coord)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/sync/start?company_guid=co-1", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202 (body %s)", w.Code, w.Body.String())
	}
	var resp StartSyncResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if !resp.Accepted {
		t.Fatalf("accepted = false, want true: %+v", resp)
	}
	waitNotRunning(t, coord, "co-1")
}

// A second manual start while a sync runs must answer 409 with the same
// response schema as the accepted path, not a bare error object.
func TestStartSyncHandlerBusyPayload(t *testing.T) {
	release := make(chan struct{})
	coord := NewCoordinator(nil, nil, &fakeInvalidator{}, nil, testLogger())
	coord.StepRunner = func(ctx context.Context, step SyncStep, companyGuid string, syncedAt time.Time, progress func(done, total int)) (int, error) {
		if step == StepMasters {
			<-release
		}
		return 0, nil
	}
	coord.Recompute = noopRecompute
	r := newSyncRouter(coord)

	first := httptest.NewRecorder()
	r.ServeHTTP(first, httptest.NewRequest(http.MethodPost, "/api/sync/start?company_guid=co-1", nil))
	if first.Code != http.StatusAccepted {
		t.Fatalf("first start status = %d, want 202", first.Code)
	}

	second := httptest.NewRecorder()
	r.ServeHTTP(second, httptest.NewRequest(http.MethodPost, "/api/sync/start?company_guid=co-1", nil))
	if second.Code != http.StatusConflict {
		t.Fatalf("second start status = %d, want 409", second.Code)
	}
	var resp StartSyncResponse
	if err := json.Unmarshal(second.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal busy response: %v", err)
	}
	if resp.Accepted {
		t.Error("busy response accepted = true, want false")
	}
	if resp.Reason != "busy" {
		t.Errorf("busy response reason = %q, want busy", resp.Reason)
	}

	close(release)
	waitNotRunning(t, coord, "co-1")
}

func TestStartSyncHandlerRequiresCompanyGuid(t *testing.T) {
	coord := NewCoordinator(nil, nil, &fakeInvalidator{}, nil, testLogger())
	coord.StepRunner = noopSteps
	coord.Recompute = noopRecompute
	r := newSyncRouter(coord)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/sync/start", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestStartSyncHandlerCompanyGuidFromHeader(t *testing.T) {
	coord := NewCoordinator(nil, nil, &fakeInvalidator{}, nil, testLogger())
	coord.StepRunner = noopSteps
	coord.Recompute = noopRecompute
	r := newSyncRouter(coord)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/sync/start", nil)
	req.Header.Set("X-Company-Guid", "co-h1")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", w.Code)
	}
	waitNotRunning(t, coord, "co-h1")
}
