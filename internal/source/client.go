// Package source is the client for the external realtime telemetry
// store: a JSON tree keyed by device id, readable in one shot over
// REST and subscribable as a server-sent event stream.
package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Bhimonw/SobatNelayan/internal/telemetry"
)

// Client reads the device tree from the realtime store.
type Client struct {
	baseURL string
	path    string

	// fetchClient has a request timeout; streamClient must not, the
	// event stream is long-lived and cancelled via context.
	fetchClient  *http.Client
	streamClient *http.Client
}

// NewClient creates a client for the store at baseURL, scoped to the
// subtree at path ("/" for the root).
func NewClient(baseURL, path string) *Client {
	if path == "" {
		path = "/"
	}
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		path:         path,
		fetchClient:  &http.Client{Timeout: 10 * time.Second},
		streamClient: &http.Client{},
	}
}

// Configured reports whether a store URL is set.
func (c *Client) Configured() bool {
	return c.baseURL != ""
}

// BaseURL returns the configured store URL (health reporting).
func (c *Client) BaseURL() string {
	return c.baseURL
}

// treeURL is the REST endpoint for the configured subtree.
func (c *Client) treeURL() string {
	p := strings.Trim(c.path, "/")
	if p == "" {
		return c.baseURL + "/.json"
	}
	return c.baseURL + "/" + p + ".json"
}

// FetchTree reads the full current device tree. An absent subtree
// (JSON null) yields an empty map, not an error.
func (c *Client) FetchTree(ctx context.Context) (map[string]telemetry.RawRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.treeURL(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build tree request: %w", err)
	}

	resp, err := c.fetchClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tree fetch failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tree fetch returned status %d", resp.StatusCode)
	}

	var payload map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode tree: %w", err)
	}

	return decodeTree(payload), nil
}

// decodeTree keeps only leaves that are objects; scalar leaves under
// the subtree root are not device records.
func decodeTree(payload map[string]json.RawMessage) map[string]telemetry.RawRecord {
	tree := make(map[string]telemetry.RawRecord, len(payload))
	for id, raw := range payload {
		var record telemetry.RawRecord
		if err := json.Unmarshal(raw, &record); err != nil || record == nil {
			continue
		}
		tree[id] = record
	}
	return tree
}
