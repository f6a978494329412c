package http

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"time"
)

// ErrorResponse represents a standard API error response
type ErrorResponse struct {
	Error   string `json:"error"`   // Machine-readable error code
	Message string `json:"message"` // Human-readable message
}

// WriteError writes a JSON error response with the given status code
func WriteError(w http.ResponseWriter, statusCode int, errorCode, message string) {
	WriteJSON(w, statusCode, ErrorResponse{Error: errorCode, Message: message})
}

// Common error writers for consistency
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, "bad_request", message)
}

func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, "unauthorized", message)
}

func WriteConflict(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, "conflict", message)
}

// RateLimitResponse is the 429 body. Reset is unix seconds, RetryAfter is seconds.
type RateLimitResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	Limit      int    `json:"limit"`
	Remaining  int    `json:"remaining"`
	Reset      int64  `json:"reset"`
	RetryAfter int    `json:"retryAfter"`
}

// SetRateLimitHeaders writes the X-RateLimit-* headers
func SetRateLimitHeaders(w http.ResponseWriter, limit, remaining int, reset time.Time) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))
}

// WriteRateLimited writes a 429 with the rate-limit headers, Retry-After and
// the machine-readable body
func WriteRateLimited(w http.ResponseWriter, limit, remaining int, reset time.Time, retryAfter int) {
	SetRateLimitHeaders(w, limit, remaining, reset)
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))

	WriteJSON(w, http.StatusTooManyRequests, RateLimitResponse{
		Error:      "rate_limit_exceeded",
		Message:    "Too many requests. Please try again later.",
		Limit:      limit,
		Remaining:  remaining,
		Reset:      reset.Unix(),
		RetryAfter: retryAfter,
	})
}

// LockedResponse is the 423 body for a temporarily locked account
type LockedResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after"`
}

// WriteLocked writes a 423 with Retry-After rounded up to whole seconds
func WriteLocked(w http.ResponseWriter, retryAfter time.Duration) {
	seconds := int(math.Ceil(retryAfter.Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(seconds))

	WriteJSON(w, http.StatusLocked, LockedResponse{
		Error:      "account_locked",
		Message:    "Account is temporarily locked. Please try again later.",
		RetryAfter: seconds,
	})
}

// WriteJSON writes v as a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteInternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, "internal_error", message)
}
