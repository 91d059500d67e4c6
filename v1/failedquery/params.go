package failedquery

import (
	"encoding/base64"
	"time"
)

// Tagged objects carry the parameter types JSON would flatten into strings.
const (
	bytesTag = "$bytes"
	timeTag  = "$time"
)

func encodeParams(params []any) []any {
	if params == nil {
		return nil
	}
	out := make([]any, len(params))
	for i, p := range params {
		switch v := p.(type) {
		case []byte:
			if v != nil {
				out[i] = map[string]string{bytesTag: base64.StdEncoding.EncodeToString(v)}
			}
		case time.Time:
			out[i] = map[string]string{timeTag: v.Format(time.RFC3339Nano)}
		case *time.Time:
			if v != nil {
				out[i] = map[string]string{timeTag: v.Format(time.RFC3339Nano)}
			}
		default:
			out[i] = p
		}
	}
	return out
}

// decodeParam reverses encodeParams for one value. Objects that are not a
// well-formed tag are returned as decoded by encoding/json.
func decodeParam(v any) any {
	m, ok := v.(map[string]any)
	if !ok || len(m) != 1 {
		return v
	}
	if s, ok := m[bytesTag].(string); ok {
		if b, err := base64.StdEncoding.DecodeString(s); err == nil {
			return b
		}
	}
	if s, ok := m[timeTag].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return t
		}
	}
	return v
}
