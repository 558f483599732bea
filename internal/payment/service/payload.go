package service

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Provider payloads arrive as untyped JSON; numbers may be float64,
// json.Number, or strings depending on the decoder path.

func payloadString(payload map[string]any, key string) string {
	if payload == nil {
		return ""
	}
	switch cast := payload[key].(type) {
	case string:
		return strings.TrimSpace(cast)
	case float64:
		if cast == 0 {
			return ""
		}
		return strconv.FormatInt(int64(cast), 10)
	case json.Number:
		return cast.String()
	}
	return ""
}

func payloadInt64(payload map[string]any, key string) int64 {
	if payload == nil {
		return 0
	}
	switch cast := payload[key].(type) {
	case float64:
		return int64(cast)
	case int64:
		return cast
	case int:
		return int64(cast)
	case json.Number:
		parsed, err := cast.Int64()
		if err == nil {
			return parsed
		}
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(cast), 10, 64)
		if err == nil {
			return parsed
		}
	}
	return 0
}

func payloadMap(payload map[string]any, key string) map[string]any {
	if payload == nil {
		return nil
	}
	if m, ok := payload[key].(map[string]any); ok {
		return m
	}
	return nil
}

// mergeMetadata copies base and overlays extra on top, leaving base untouched.
func mergeMetadata(base map[string]any, extra map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}
