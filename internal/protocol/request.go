package protocol

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Request is one parsed inbound message. It lives only for the duration of
// a single dispatch. Clients send `{"accion": ..., "datos": {...}}`, with
// some actions carrying parameters as top-level fields instead; Value looks
// in both places.
type Request struct {
	action string
	datos  map[string]json.RawMessage
	top    map[string]json.RawMessage
}

// ParseRequest parses a raw inbound message
func ParseRequest(raw []byte) (*Request, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return nil, err
	}

	req := &Request{top: top}

	if accion, ok := top["accion"]; ok {
		req.action = rawToString(accion)
	}

	if datos, ok := top["datos"]; ok {
		var nested map[string]json.RawMessage
		// A non-object datos (string, number) is left to per-handler
		// interpretation via Value on the top level
		if err := json.Unmarshal(datos, &nested); err == nil {
			req.datos = nested
		}
	}

	return req, nil
}

// Action returns the requested action name, lower-cased. Action names are
// case-insensitive on the wire.
func (r *Request) Action() string {
	return strings.ToLower(strings.TrimSpace(r.action))
}

// Value returns the named parameter as a string, checking the datos object
// first and falling back to the top-level field. Numbers and booleans are
// coerced; a missing or null field yields "".
func (r *Request) Value(name string) string {
	if raw, ok := r.datos[name]; ok {
		return rawToString(raw)
	}
	if raw, ok := r.top[name]; ok {
		return rawToString(raw)
	}
	return ""
}

// Has reports whether the named parameter is present and non-empty
func (r *Request) Has(name string) bool {
	return r.Value(name) != ""
}

func rawToString(raw json.RawMessage) string {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return ""
	}

	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}
