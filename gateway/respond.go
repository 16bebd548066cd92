package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"sardis/errs"
)

type errorBody struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		if err := json.NewEncoder(w).Encode(v); err != nil {
			s.logger.Error("encode response", "err", err)
		}
	}
}

// writeError maps the platform error code to an HTTP status through the
// single errs table. Internal errors never leak their message.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := errs.CodeOf(err)
	status := errs.StatusOf(err)

	body := errorBody{Code: string(code), Message: err.Error()}
	var platformErr *errs.Error
	if errors.As(err, &platformErr) {
		body.Details = platformErr.Details
	}
	if code == errs.CodeInternal {
		body.Message = "internal error"
		s.logger.Error("request failed", "path", r.URL.Path, "err", err)
	} else {
		s.logger.Warn("request rejected", "path", r.URL.Path, "code", code, "err", err)
	}
	s.writeJSON(w, status, map[string]errorBody{"error": body})
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return errs.Wrap(errs.CodeValidation, "decode request body", err)
	}
	return nil
}

// decodeJSONOptional is decodeJSON for endpoints where the body may be empty.
func decodeJSONOptional(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return errs.Wrap(errs.CodeValidation, "decode request body", err)
	}
	return nil
}
