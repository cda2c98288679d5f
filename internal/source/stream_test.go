package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Bhimonw/SobatNelayan/internal/telemetry"
)

func sseEvent(eventType, data string) string {
	return fmt.Sprintf("event: %s\ndata: %s\n\n", eventType, data)
}

func TestStreamMergesPutAndPatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept") != "text/event-stream" {
			http.Error(w, "expected event stream request", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")

		// Initial full-tree put, a keep-alive, a record patch, a nested
		// field put, and a record deletion.
		_, _ = fmt.Fprint(w, sseEvent("put",
			`{"path":"/","data":{"D1":{"lat":-6.2,"long":106.8,"status":"on"},"D2":{"lat":1,"long":2}}}`))
		_, _ = fmt.Fprint(w, sseEvent("keep-alive", `null`))
		_, _ = fmt.Fprint(w, sseEvent("patch", `{"path":"/D1","data":{"status":"off"}}`))
		_, _ = fmt.Fprint(w, sseEvent("put", `{"path":"/D2/lat","data":7.5}`))
		_, _ = fmt.Fprint(w, sseEvent("put", `{"path":"/D1","data":null}`))
	}))
	defer server.Close()

	var calls []map[string]telemetry.RawRecord
	c := NewClient(server.URL, "/")
	err := c.Stream(context.Background(), func(tree map[string]telemetry.RawRecord) {
		// Copy: the callback tree aliases the client's local state.
		call := make(map[string]telemetry.RawRecord, len(tree))
		for id, rec := range tree {
			cp := make(telemetry.RawRecord, len(rec))
			for k, v := range rec {
				cp[k] = v
			}
			call[id] = cp
		}
		calls = append(calls, call)
	})
	if err == nil {
		t.Fatal("Stream() returned nil after server closed the stream")
	}

	if len(calls) != 3 {
		t.Fatalf("got %d callbacks, want 3 (keep-alive and deletion are silent)", len(calls))
	}

	if len(calls[0]) != 2 {
		t.Errorf("initial put delivered %d records, want 2", len(calls[0]))
	}
	if calls[0]["D1"]["status"] != "on" {
		t.Errorf("initial D1 status = %v, want on", calls[0]["D1"]["status"])
	}

	// The patch delivers the complete merged record, not just the
	// changed field.
	d1 := calls[1]["D1"]
	if d1["status"] != "off" {
		t.Errorf("patched D1 status = %v, want off", d1["status"])
	}
	if d1["lat"] != -6.2 {
		t.Errorf("patched D1 lost lat: %v", d1["lat"])
	}

	d2 := calls[2]["D2"]
	if d2["lat"] != 7.5 {
		t.Errorf("nested put D2 lat = %v, want 7.5", d2["lat"])
	}
	if d2["long"] != float64(2) {
		t.Errorf("nested put D2 lost long: %v", d2["long"])
	}
}

func TestStreamServerRevocation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = fmt.Fprint(w, sseEvent("auth_revoked", `"credential expired"`))
	}))
	defer server.Close()

	c := NewClient(server.URL, "/")
	err := c.Stream(context.Background(), func(map[string]telemetry.RawRecord) {
		t.Error("revocation event reached the callback")
	})
	if err == nil {
		t.Fatal("Stream() did not surface the revocation as an error")
	}
}

func TestApplyEventRootPutReplacesTree(t *testing.T) {
	tree := map[string]telemetry.RawRecord{
		"stale": {"lat": 9.0},
	}
	affected := applyEvent(tree, "put", streamEvent{
		Path: "/",
		Data: json.RawMessage(`{"D1":{"lat":1,"long":2}}`),
	})

	if len(affected) != 1 || affected[0] != "D1" {
		t.Errorf("affected = %v, want [D1]", affected)
	}
	if _, exists := tree["stale"]; exists {
		t.Error("root put kept a record the server no longer has")
	}
}

func TestApplyEventRootPatchMerges(t *testing.T) {
	tree := map[string]telemetry.RawRecord{
		"D1": {"lat": 1.0},
	}
	applyEvent(tree, "patch", streamEvent{
		Path: "/",
		Data: json.RawMessage(`{"D2":{"lat":3,"long":4}}`),
	})

	if _, exists := tree["D1"]; !exists {
		t.Error("root patch dropped an unrelated record")
	}
	if _, exists := tree["D2"]; !exists {
		t.Error("root patch did not add the new record")
	}
}

func TestSplitPath(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"/", 0},
		{"", 0},
		{"/D1", 1},
		{"/D1/lat", 2},
		{"D1/pos/lat/", 3},
	}
	for _, tc := range cases {
		if got := splitPath(tc.in); len(got) != tc.want {
			t.Errorf("splitPath(%q) = %v, want %d segments", tc.in, got, tc.want)
		}
	}
}
