package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestSSE_Handshake(t *testing.T) {
	gin.SetMode(gin.ReleaseMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/events", nil)

	// nil DB: the handler writes the handshake and returns without polling.
	handleSSE(nil)(c)

	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}
	body := w.Body.String()
	if !strings.Contains(body, "event: connected") {
		t.Errorf("body %q missing connected event", body)
	}
	if !strings.Contains(body, `"type":"connected"`) {
		t.Errorf("body %q missing connected payload", body)
	}
}

func TestWriteSSE_FrameFormat(t *testing.T) {
	var sb strings.Builder
	writeSSE(&sb, "sla_breach", map[string]string{"id": "ld-aaaaa"})

	got := sb.String()
	want := "event: sla_breach\ndata: {\"id\":\"ld-aaaaa\"}\n\n"
	if got != want {
		t.Errorf("frame = %q, want %q", got, want)
	}
}
