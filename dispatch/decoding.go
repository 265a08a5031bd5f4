package dispatch

import (
	"bytes"
	"encoding/json"
	nethttp "net/http"
	"strings"
)

// decodeBody converts a completed exchange's body according to rt.
// Text never fails. JSON treats 204 as an empty object and any other blank
// body as an empty string.
func decodeBody(status int, body []byte, rt ResponseType) (any, DispatchError) {
	if rt == ResponseText {
		if status == nethttp.StatusNoContent {
			return "", nil
		}
		return string(body), nil
	}

	if status == nethttp.StatusNoContent {
		return map[string]any{}, nil
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return "", nil
	}

	var decoded any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, NewResponseParseError(err)
	}
	return decoded, nil
}

// flattenHeaders lower-cases header names and joins repeated values.
func flattenHeaders(h nethttp.Header) map[string]string {
	out := make(map[string]string, len(h))
	for name, values := range h {
		key := strings.ToLower(name)
		if prev, ok := out[key]; ok {
			out[key] = prev + ", " + strings.Join(values, ", ")
			continue
		}
		out[key] = strings.Join(values, ", ")
	}
	return out
}
