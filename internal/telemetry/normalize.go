package telemetry

import (
	"strconv"
	"strings"
	"time"
)

// Ordered alias tables for coordinate and timestamp resolution. Earlier
// aliases win when a record carries several spellings.
var (
	latitudeAliases  = []string{"latitude", "lat"}
	longitudeAliases = []string{"longitude", "long", "lng"}
	timestampAliases = []string{"ts", "updatedAt", "lastSeen", "last_update", "timestamp"}
)

// epochMillisFloor separates epoch-second from epoch-millisecond
// encodings: any positive value below it is treated as seconds.
const epochMillisFloor = 1e12

// Normalize maps one raw device record into a canonical Snapshot.
// Records without a resolvable coordinate pair are dropped (ok=false).
func Normalize(deviceID string, raw RawRecord) (Snapshot, bool) {
	if raw == nil {
		return Snapshot{}, false
	}

	lat, latOK := resolveFloat(raw, latitudeAliases)
	lon, lonOK := resolveFloat(raw, longitudeAliases)
	if !latOK || !lonOK {
		return Snapshot{}, false
	}

	snap := Snapshot{
		DeviceID:  deviceID,
		Latitude:  lat,
		Longitude: lon,
	}

	if v, exists := raw["status"]; exists && v != nil {
		switch strings.ToLower(toString(v)) {
		case "on":
			snap.RawStatus = StatusOn
		case "off":
			snap.RawStatus = StatusOff
		}
	}

	for _, key := range timestampAliases {
		if v, exists := raw[key]; exists && v != nil {
			if ms, ok := ParseTimestamp(v); ok {
				snap.ObservedAtMs = ms
				break
			}
		}
	}

	return snap, true
}

// ParseTimestamp converts a raw timestamp value to epoch milliseconds.
// Accepted encodings: epoch seconds, epoch milliseconds (numbers or
// numeric strings), and parseable date strings.
func ParseTimestamp(v interface{}) (int64, bool) {
	if f, ok := toFloat(v); ok {
		if f <= 0 {
			return 0, false
		}
		if f < epochMillisFloor {
			return int64(f * 1000), true
		}
		return int64(f), true
	}

	s := strings.TrimSpace(toString(v))
	if s == "" {
		return 0, false
	}
	for _, layout := range []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UnixMilli(), true
		}
	}
	return 0, false
}

// resolveFloat returns the first alias that holds a usable number.
func resolveFloat(raw RawRecord, aliases []string) (float64, bool) {
	for _, key := range aliases {
		if v, exists := raw[key]; exists && v != nil {
			if f, ok := toFloat(v); ok {
				return f, true
			}
		}
	}
	return 0, false
}

// toFloat coerces JSON number representations, including numeric
// strings, which some firmware revisions emit for coordinates.
func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

func toString(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case int:
		return strconv.Itoa(s)
	case int64:
		return strconv.FormatInt(s, 10)
	case bool:
		return strconv.FormatBool(s)
	default:
		return ""
	}
}
