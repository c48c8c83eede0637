// Package response writes the JSON envelope every API endpoint answers with.
package response

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// Envelope wraps every JSON response body.
type Envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorBody  `json:"error,omitempty"`
	Meta    *Meta       `json:"meta,omitempty"`
}

// ErrorBody is the error half of the envelope. Code is a stable
// machine-readable error code; Details carries code-specific fields such as
// the detected and expected language of a voice mismatch.
type ErrorBody struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// Meta describes a list response.
type Meta struct {
	Total int `json:"total"`
	Limit int `json:"limit,omitempty"`
}

// JSON writes data in a success envelope when status is 2xx.
func JSON(w http.ResponseWriter, status int, data interface{}) {
	write(w, status, Envelope{Success: status >= 200 && status < 300, Data: data})
}

// JSONWithMeta writes a list response.
func JSONWithMeta(w http.ResponseWriter, status int, data interface{}, meta *Meta) {
	write(w, status, Envelope{Success: status >= 200 && status < 300, Data: data, Meta: meta})
}

// Created writes a 201 response.
func Created(w http.ResponseWriter, data interface{}) {
	JSON(w, http.StatusCreated, data)
}

// Accepted writes a 202 response for work that continues in the background.
func Accepted(w http.ResponseWriter, data interface{}) {
	JSON(w, http.StatusAccepted, data)
}

// Error writes an error envelope.
func Error(w http.ResponseWriter, status int, body *ErrorBody) {
	write(w, status, Envelope{Error: body})
}

// InternalError writes a 500 response.
func InternalError(w http.ResponseWriter, message string) {
	Error(w, http.StatusInternalServerError, &ErrorBody{
		Code:    "INTERNAL_ERROR",
		Message: message,
	})
}

// Binary writes data unwrapped, as for synthesized audio.
func Binary(w http.ResponseWriter, contentType string, data []byte) error {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, err := w.Write(data)
	return err
}

func write(w http.ResponseWriter, status int, env Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(env)
}
