package http

import (
	"net/http"

	"expensetracker/internal/codec"
	"expensetracker/internal/log"
)

const (
	msgMalformed   = "malformed request body"
	msgTooLarge    = "request body too large"
	msgInternal    = "internal error"
	msgRateLimited = "rate limit exceeded"
	msgNotFound    = "not found"
	msgNotAllowed  = "method not allowed"
)

// writeEncoded encodes v in format m and writes it with status.
func writeEncoded(w http.ResponseWriter, r *http.Request, status int, m codec.MediaType, v codec.Value) {
	body, err := codec.Encode(v, m)
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to encode response",
			log.FieldError, err,
			log.FieldOperation, log.OpEncode,
			log.FieldMediaType, m.String())
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(msgInternal))
		return
	}

	w.Header().Set("Content-Type", m.ContentType())
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// writeError writes {error: msg} in format m.
func writeError(w http.ResponseWriter, r *http.Request, status int, m codec.MediaType, msg string) {
	writeEncoded(w, r, status, m, errorBody(msg))
}

func errorBody(msg string) *codec.Object {
	return codec.NewObject().Set("error", msg)
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ExtractClientIP(r),
		log.FieldComponent, log.ComponentRateLimit)
	writeError(w, r, http.StatusTooManyRequests, codec.ParseMediaType(r.Header.Get("Content-Type")), msgRateLimited)
}

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, http.StatusNotFound, codec.Negotiate(r.Header.Get("Accept")), msgNotFound)
}

func handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, http.StatusMethodNotAllowed, codec.Negotiate(r.Header.Get("Accept")), msgNotAllowed)
}
