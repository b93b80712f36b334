package transport

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"cms-backend/internal/apperr"
)

type Envelope struct {
	Success    bool              `json:"success"`
	Data       interface{}       `json:"data,omitempty"`
	Message    string            `json:"message,omitempty"`
	Errors     map[string]string `json:"errors,omitempty"`
	Pagination interface{}       `json:"pagination,omitempty"`
	Stats      interface{}       `json:"stats,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// WriteRaw writes an already encoded JSON body, e.g. a cached response.
func WriteRaw(w http.ResponseWriter, status int, payload []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}

// WriteCached writes a body produced by the read-through cache.
func WriteCached(w http.ResponseWriter, body []byte, hit bool) {
	if hit {
		w.Header().Set("X-Cache", "HIT")
	} else {
		w.Header().Set("X-Cache", "MISS")
	}
	WriteRaw(w, http.StatusOK, body)
}

func WriteData(w http.ResponseWriter, status int, data interface{}) {
	WriteJSON(w, status, Envelope{Success: true, Data: data})
}

func WriteMessage(w http.ResponseWriter, status int, message string, data interface{}) {
	WriteJSON(w, status, Envelope{Success: true, Message: message, Data: data})
}

func WriteError(w http.ResponseWriter, status int, message string, details map[string]string) {
	WriteJSON(w, status, Envelope{
		Success: false,
		Message: message,
		Errors:  details,
	})
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusUnprocessableEntity
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindRateLimited:
		return http.StatusTooManyRequests
	case apperr.KindDuplicate, apperr.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// WriteServiceError logs err at the severity its kind deserves and writes the matching response.
// Storage details only reach the client when debug is set.
func WriteServiceError(w http.ResponseWriter, log *slog.Logger, op string, err error, debug bool) {
	e, ok := apperr.As(err)
	if !ok {
		e = apperr.Storage(op, err)
	}

	switch e.Kind {
	case apperr.KindStorage:
		log.Error(op+": storage error", slog.String("error", err.Error()))
		message := "internal error"
		if debug {
			message = err.Error()
		}
		WriteError(w, http.StatusInternalServerError, message, nil)
		return
	case apperr.KindRateLimited:
		log.Info(op+": rate limited", slog.Duration("retry_after", e.RetryAfter))
		w.Header().Set("Retry-After", strconv.Itoa(RetryAfterSeconds(e.RetryAfter)))
	case apperr.KindDuplicate:
		log.Info(op + ": duplicate submission")
	default:
		log.Warn(op+": "+e.Kind.String(), slog.String("error", e.Message))
	}
	WriteError(w, StatusFor(e.Kind), e.Message, e.Fields)
}

// RetryAfterSeconds rounds up and never returns less than one second.
func RetryAfterSeconds(d time.Duration) int {
	secs := int(d.Seconds())
	if float64(secs) < d.Seconds() {
		secs++
	}
	if secs < 1 {
		secs = 1
	}
	return secs
}
