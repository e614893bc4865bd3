package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/openhouse-labs/keyturn/internal/db"
)

func newTestRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := gdb.AutoMigrate(db.AllModels()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewRouter(gdb, 0), gdb
}

func doJSON(t *testing.T, router *gin.Engine, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var decoded map[string]any
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &decoded); err != nil {
			t.Fatalf("%s %s: decode response %q: %v", method, path, w.Body.String(), err)
		}
	}
	return w, decoded
}

func TestHealthz(t *testing.T) {
	router, _ := newTestRouter(t)
	w, body := doJSON(t, router, http.MethodGet, "/healthz", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if body["ok"] != true {
		t.Errorf("body = %v, want ok:true", body)
	}
}

func TestLeadIngest_SingleObject(t *testing.T) {
	router, _ := newTestRouter(t)
	w, body := doJSON(t, router, http.MethodPost, "/leads/ingest",
		`{"name":"Jane Doe","source":"zillow","score":0.8}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %v", w.Code, body)
	}
	if body["inserted"] != float64(1) {
		t.Errorf("inserted = %v, want 1", body["inserted"])
	}
}

func TestLeadIngest_Array(t *testing.T) {
	router, _ := newTestRouter(t)
	w, body := doJSON(t, router, http.MethodPost, "/leads/ingest",
		`[{"name":"Alice"},{"name":"Bob","assignedAgentId":"agent-1"}]`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %v", w.Code, body)
	}
	if body["inserted"] != float64(2) {
		t.Errorf("inserted = %v, want 2", body["inserted"])
	}
}

func TestLeadIngest_InvalidItem(t *testing.T) {
	router, _ := newTestRouter(t)
	w, _ := doJSON(t, router, http.MethodPost, "/leads/ingest",
		`[{"name":"Alice"},{"source":"zillow"}]`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}

	// Nothing inserted from a failed batch.
	w, body := doJSON(t, router, http.MethodGet, "/leads", "")
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	if data := body["data"].([]any); len(data) != 0 {
		t.Errorf("lead count = %d after failed ingest, want 0", len(data))
	}
}

func TestLeadList_SeverityFields(t *testing.T) {
	router, _ := newTestRouter(t)
	doJSON(t, router, http.MethodPost, "/leads/ingest", `{"name":"Jane","slaSeconds":600}`)

	w, body := doJSON(t, router, http.MethodGet, "/leads", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	data := body["data"].([]any)
	if len(data) != 1 {
		t.Fatalf("lead count = %d, want 1", len(data))
	}
	row := data[0].(map[string]any)
	if row["severity"] != "ok" {
		t.Errorf("severity = %v, want ok", row["severity"])
	}
	if remaining := row["slaRemaining"].(float64); remaining <= 0 || remaining > 600 {
		t.Errorf("slaRemaining = %v, want in (0, 600]", remaining)
	}
}

func TestLeadResponded(t *testing.T) {
	router, _ := newTestRouter(t)
	doJSON(t, router, http.MethodPost, "/leads/ingest", `{"id":"ld-aaaaa","name":"Jane"}`)

	w, body := doJSON(t, router, http.MethodPost, "/leads/ld-aaaaa/responded", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %v", w.Code, body)
	}
	data := body["data"].(map[string]any)
	if data["responded"] != true {
		t.Errorf("responded = %v, want true", data["responded"])
	}
	if data["severity"] != "ok" {
		t.Errorf("severity = %v, want ok for a responded lead", data["severity"])
	}
}

func TestLeadResponded_NotFound(t *testing.T) {
	router, _ := newTestRouter(t)
	w, _ := doJSON(t, router, http.MethodPost, "/leads/ld-nope0/responded", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestTaskCreate(t *testing.T) {
	router, _ := newTestRouter(t)
	w, body := doJSON(t, router, http.MethodPost, "/tasks",
		`{"type":"buyer_agreement","client":"Jane Doe"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %v", w.Code, body)
	}
	data := body["data"].(map[string]any)
	if data["status"] != "pending" || data["effectiveStatus"] != "pending" {
		t.Errorf("statuses = %v/%v, want pending/pending", data["status"], data["effectiveStatus"])
	}
}

func TestTaskCreate_LegacyStatusRejected(t *testing.T) {
	router, _ := newTestRouter(t)
	for _, status := range []string{"done", "missing", "overdue"} {
		w, _ := doJSON(t, router, http.MethodPost, "/tasks",
			fmt.Sprintf(`{"type":"buyer_agreement","client":"Jane","status":%q}`, status))
		if w.Code != http.StatusBadRequest {
			t.Errorf("status %q: code = %d, want 400", status, w.Code)
		}
	}
}

func TestTaskIngest_Array(t *testing.T) {
	router, _ := newTestRouter(t)
	w, body := doJSON(t, router, http.MethodPost, "/tasks/ingest",
		`[{"type":"buyer_agreement","client":"Alice"},{"type":"comp_disclosure","client":"Bob"}]`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %v", w.Code, body)
	}
	if body["inserted"] != float64(2) {
		t.Errorf("inserted = %v, want 2", body["inserted"])
	}
}

func TestTaskComplete_Idempotent(t *testing.T) {
	router, _ := newTestRouter(t)
	doJSON(t, router, http.MethodPost, "/tasks/ingest",
		`{"id":"ct-aaaaa","type":"buyer_agreement","client":"Jane"}`)

	w, body := doJSON(t, router, http.MethodPost, "/tasks/ct-aaaaa/complete", "")
	if w.Code != http.StatusOK {
		t.Fatalf("first complete status = %d, body = %v", w.Code, body)
	}
	if body["alreadyCompleted"] != false {
		t.Errorf("alreadyCompleted = %v on first call, want false", body["alreadyCompleted"])
	}

	w, body = doJSON(t, router, http.MethodPost, "/tasks/ct-aaaaa/complete", "")
	if w.Code != http.StatusOK {
		t.Fatalf("second complete status = %d", w.Code)
	}
	if body["alreadyCompleted"] != true {
		t.Errorf("alreadyCompleted = %v on second call, want true", body["alreadyCompleted"])
	}
}

func TestTaskComplete_NotFound(t *testing.T) {
	router, _ := newTestRouter(t)
	w, _ := doJSON(t, router, http.MethodPost, "/tasks/ct-nope0/complete", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestTaskSnooze_DefaultDay(t *testing.T) {
	router, _ := newTestRouter(t)
	doJSON(t, router, http.MethodPost, "/tasks/ingest",
		`{"id":"ct-aaaaa","type":"buyer_agreement","client":"Jane"}`)

	// No body at all: snooze by one day.
	w, body := doJSON(t, router, http.MethodPost, "/tasks/ct-aaaaa/snooze", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %v", w.Code, body)
	}
	data := body["data"].(map[string]any)
	if data["dueAt"] == nil {
		t.Error("dueAt not set after snooze")
	}
}

func TestTaskSnooze_ExplicitDays(t *testing.T) {
	router, _ := newTestRouter(t)
	doJSON(t, router, http.MethodPost, "/tasks/ingest",
		`{"id":"ct-aaaaa","type":"buyer_agreement","client":"Jane"}`)

	w, _ := doJSON(t, router, http.MethodPost, "/tasks/ct-aaaaa/snooze", `{"days":3}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	w, _ = doJSON(t, router, http.MethodPost, "/tasks/ct-aaaaa/snooze", `{"days":0}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("days=0 status = %d, want 400", w.Code)
	}
}

func TestTaskSnooze_CompletedConflict(t *testing.T) {
	router, _ := newTestRouter(t)
	doJSON(t, router, http.MethodPost, "/tasks/ingest",
		`{"id":"ct-aaaaa","type":"buyer_agreement","client":"Jane","status":"completed"}`)

	w, _ := doJSON(t, router, http.MethodPost, "/tasks/ct-aaaaa/snooze", "")
	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", w.Code)
	}
}

// TestTourBook_GateFlow walks the whole booking gate: denied without an
// agreement, denied while it is pending, allowed once completed, and the
// replay deduped.
func TestTourBook_GateFlow(t *testing.T) {
	router, _ := newTestRouter(t)
	book := `{"client":"Jane Doe","property":"12 Oak St","startsAt":"2026-03-02T10:00:00Z"}`

	// No agreement on file.
	w, body := doJSON(t, router, http.MethodPost, "/tours/book", book)
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403; body = %v", w.Code, body)
	}
	if body["error"] != "tour_blocked" || body["reason"] != "no_buyer_agreement" {
		t.Errorf("body = %v, want tour_blocked/no_buyer_agreement", body)
	}

	// Pending agreement still blocks, and the denial carries it.
	doJSON(t, router, http.MethodPost, "/tasks/ingest",
		`{"id":"ct-aaaaa","type":"buyer_agreement","client":"Jane Doe"}`)
	w, body = doJSON(t, router, http.MethodPost, "/tours/book", book)
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
	if body["reason"] != "buyer_agreement_not_completed" {
		t.Errorf("reason = %v, want buyer_agreement_not_completed", body["reason"])
	}
	if latest := body["latest"].(map[string]any); latest["id"] != "ct-aaaaa" {
		t.Errorf("latest = %v, want task ct-aaaaa", latest)
	}

	// Complete it; booking goes through.
	doJSON(t, router, http.MethodPost, "/tasks/ct-aaaaa/complete", "")
	w, body = doJSON(t, router, http.MethodPost, "/tours/book", book)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201; body = %v", w.Code, body)
	}
	firstID := body["data"].(map[string]any)["id"]

	// Replay of the same slot dedupes.
	w, body = doJSON(t, router, http.MethodPost, "/tours/book", book)
	if w.Code != http.StatusOK {
		t.Fatalf("replay status = %d, want 200; body = %v", w.Code, body)
	}
	if body["deduped"] != true {
		t.Errorf("deduped = %v on replay, want true", body["deduped"])
	}
	if id := body["data"].(map[string]any)["id"]; id != firstID {
		t.Errorf("replay returned %v, want original %v", id, firstID)
	}

	w, body = doJSON(t, router, http.MethodGet, "/tours", "")
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	if data := body["data"].([]any); len(data) != 1 {
		t.Errorf("tour count = %d, want 1", len(data))
	}
}

func TestTourBook_BadDatetime(t *testing.T) {
	router, _ := newTestRouter(t)
	w, body := doJSON(t, router, http.MethodPost, "/tours/book",
		`{"client":"Jane","property":"12 Oak St","startsAt":"tomorrow at noon"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if body["error"] != "invalid startsAt datetime" {
		t.Errorf("error = %v, want invalid startsAt datetime", body["error"])
	}
}

func TestTourBook_MissingFields(t *testing.T) {
	router, _ := newTestRouter(t)
	w, _ := doJSON(t, router, http.MethodPost, "/tours/book", `{"client":"Jane"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestDiagDB(t *testing.T) {
	router, _ := newTestRouter(t)
	doJSON(t, router, http.MethodPost, "/leads/ingest", `{"name":"Jane"}`)

	w, body := doJSON(t, router, http.MethodGet, "/diag/db", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if body["ok"] != true {
		t.Errorf("ok = %v, want true", body["ok"])
	}
	tables := body["tables"].(map[string]any)
	for _, name := range []string{"leads", "compliance_tasks", "tours"} {
		if tables[name] != true {
			t.Errorf("table %s reported missing", name)
		}
	}
	if body["leadsCount"] != float64(1) {
		t.Errorf("leadsCount = %v, want 1", body["leadsCount"])
	}
}
