package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestTreeURL(t *testing.T) {
	cases := []struct {
		base string
		path string
		want string
	}{
		{"https://store.example.com", "/", "https://store.example.com/.json"},
		{"https://store.example.com/", "/devices", "https://store.example.com/devices.json"},
		{"https://store.example.com", "devices/", "https://store.example.com/devices.json"},
		{"https://store.example.com", "", "https://store.example.com/.json"},
	}
	for _, tc := range cases {
		c := NewClient(tc.base, tc.path)
		if got := c.treeURL(); got != tc.want {
			t.Errorf("NewClient(%q, %q).treeURL() = %q, want %q", tc.base, tc.path, got, tc.want)
		}
	}
}

func TestConfigured(t *testing.T) {
	if !NewClient("https://store.example.com", "/").Configured() {
		t.Error("client with a base URL reports unconfigured")
	}
	if NewClient("", "/").Configured() {
		t.Error("client without a base URL reports configured")
	}
}

func TestFetchTree(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/devices.json" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"D1": {"lat": -6.2, "long": 106.8, "status": "on"},
			"D2": {"latitude": 1.5, "longitude": 2.5},
			"note": "maintenance window",
			"gone": null
		}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, "/devices")
	tree, err := c.FetchTree(context.Background())
	if err != nil {
		t.Fatalf("FetchTree() error: %v", err)
	}

	if len(tree) != 2 {
		t.Fatalf("got %d records, want 2 (scalar and null leaves skipped)", len(tree))
	}
	if tree["D1"]["status"] != "on" {
		t.Errorf("D1 status = %v, want on", tree["D1"]["status"])
	}
	if tree["D2"]["latitude"] != 1.5 {
		t.Errorf("D2 latitude = %v, want 1.5", tree["D2"]["latitude"])
	}
}

func TestFetchTreeNullSubtree(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`null`))
	}))
	defer server.Close()

	c := NewClient(server.URL, "/")
	tree, err := c.FetchTree(context.Background())
	if err != nil {
		t.Fatalf("FetchTree() error on null subtree: %v", err)
	}
	if len(tree) != 0 {
		t.Errorf("null subtree yielded %d records, want 0", len(tree))
	}
}

func TestFetchTreeErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "permission denied", http.StatusUnauthorized)
	}))
	defer server.Close()

	c := NewClient(server.URL, "/")
	if _, err := c.FetchTree(context.Background()); err == nil {
		t.Error("FetchTree() succeeded on a 401 response")
	}
}
