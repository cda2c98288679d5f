package source

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/Bhimonw/SobatNelayan/internal/telemetry"
)

// streamEvent is the payload of a put or patch notification: a path
// into the tree and the new data at that path.
type streamEvent struct {
	Path string          `json:"path"`
	Data json.RawMessage `json:"data"`
}

// Stream subscribes to change notifications on the configured subtree
// and invokes fn with the affected device records for every put/patch.
// The store only sends the changed path, so a local tree is maintained
// and merged into; partial-path notifications still yield complete
// records. Returns when ctx is done or the stream fails.
func (c *Client) Stream(ctx context.Context, fn func(map[string]telemetry.RawRecord)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.treeURL(), nil)
	if err != nil {
		return fmt.Errorf("failed to build stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.streamClient.Do(req)
	if err != nil {
		return fmt.Errorf("stream subscribe failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("stream subscribe returned status %d", resp.StatusCode)
	}

	tree := make(map[string]telemetry.RawRecord)

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var eventType, data string
	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case line == "":
			// Blank line terminates one event.
			if eventType != "" {
				if err := c.dispatch(tree, eventType, data, fn); err != nil {
					return err
				}
			}
			eventType, data = "", ""
		case strings.HasPrefix(line, "event:"):
			eventType = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		}
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("stream read failed: %w", err)
	}
	return fmt.Errorf("stream closed by server")
}

// dispatch applies one stream event to the local tree and hands the
// affected records to fn.
func (c *Client) dispatch(tree map[string]telemetry.RawRecord, eventType, data string, fn func(map[string]telemetry.RawRecord)) error {
	switch eventType {
	case "put", "patch":
	case "keep-alive":
		return nil
	case "cancel", "auth_revoked":
		return fmt.Errorf("stream terminated by server: %s", eventType)
	default:
		return nil
	}

	var ev streamEvent
	if err := json.Unmarshal([]byte(data), &ev); err != nil {
		return fmt.Errorf("failed to decode stream event: %w", err)
	}

	affected := applyEvent(tree, eventType, ev)
	if len(affected) == 0 {
		return nil
	}

	changed := make(map[string]telemetry.RawRecord, len(affected))
	for _, id := range affected {
		if record, exists := tree[id]; exists {
			changed[id] = record
		}
	}
	if len(changed) > 0 {
		fn(changed)
	}
	return nil
}

// applyEvent merges a put or patch into the tree and returns the ids of
// affected devices.
func applyEvent(tree map[string]telemetry.RawRecord, eventType string, ev streamEvent) []string {
	segments := splitPath(ev.Path)

	// Root operations replace or merge whole device records.
	if len(segments) == 0 {
		var payload map[string]json.RawMessage
		if err := json.Unmarshal(ev.Data, &payload); err != nil {
			return nil
		}
		if eventType == "put" {
			for id := range tree {
				delete(tree, id)
			}
		}
		var affected []string
		for id, record := range decodeTree(payload) {
			tree[id] = record
			affected = append(affected, id)
		}
		return affected
	}

	id := segments[0]
	rest := segments[1:]

	if len(rest) == 0 && eventType == "put" {
		var record telemetry.RawRecord
		if err := json.Unmarshal(ev.Data, &record); err != nil || record == nil {
			delete(tree, id)
			return nil
		}
		tree[id] = record
		return []string{id}
	}

	record, exists := tree[id]
	if !exists {
		record = make(telemetry.RawRecord)
		tree[id] = record
	}

	if eventType == "patch" {
		var fields map[string]interface{}
		if err := json.Unmarshal(ev.Data, &fields); err != nil {
			return nil
		}
		node := descend(record, rest)
		if node == nil {
			return nil
		}
		for k, v := range fields {
			node[k] = v
		}
		return []string{id}
	}

	// put below the record root sets a single nested value.
	var value interface{}
	if err := json.Unmarshal(ev.Data, &value); err != nil {
		return nil
	}
	node := descend(record, rest[:len(rest)-1])
	if node == nil {
		return nil
	}
	if value == nil {
		delete(node, rest[len(rest)-1])
	} else {
		node[rest[len(rest)-1]] = value
	}
	return []string{id}
}

// descend walks (and creates) nested map nodes along the segments.
func descend(node map[string]interface{}, segments []string) map[string]interface{} {
	for _, seg := range segments {
		child, exists := node[seg].(map[string]interface{})
		if !exists {
			child = make(map[string]interface{})
			node[seg] = child
		}
		node = child
	}
	return node
}

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}
