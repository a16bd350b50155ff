package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

// ErrorEnvelope is the body of every non-2xx JSON response.
type ErrorEnvelope struct {
	Message string            `json:"message"`
	Code    string            `json:"code"`
	Meta    map[string]string `json:"meta,omitempty"`
}

const MetaRequestID = "request_id"

var ErrTrailingData = errors.New("unexpected data after JSON body")

func WriteJSON(w http.ResponseWriter, status int, payload any) error {
	if w == nil {
		return nil
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if payload == nil {
		return nil
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc.Encode(payload)
}

func WriteError(w http.ResponseWriter, status int, code, message string, meta map[string]string) error {
	return WriteJSON(w, status, &ErrorEnvelope{
		Code:    code,
		Message: message,
		Meta:    meta,
	})
}

// WithRequestID returns a copy of meta carrying the request id. An empty id
// leaves meta untouched.
func WithRequestID(meta map[string]string, requestID string) map[string]string {
	if requestID == "" {
		return meta
	}
	out := make(map[string]string, len(meta)+1)
	for k, v := range meta {
		out[k] = v
	}
	out[MetaRequestID] = requestID
	return out
}

// DecodeStrict decodes a single JSON document into out, rejecting unknown
// fields and anything after the document. The body is closed.
func DecodeStrict(body io.ReadCloser, out any) error {
	defer func() { _ = body.Close() }()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return err
	}
	if dec.More() {
		return ErrTrailingData
	}
	return nil
}
