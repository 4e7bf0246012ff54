package server

import (
	"encoding/json"
	"net/http"

	"github.com/HerbHall/peeringmanager/pkg/models"
)

// Problem types for RFC 7807 Problem Details responses.
const (
	ProblemTypeNotFound     = models.ProblemTypeBase + "not-found"
	ProblemTypeBadRequest   = models.ProblemTypeBase + "bad-request"
	ProblemTypeInternal     = models.ProblemTypeBase + "internal-error"
	ProblemTypeUnauthorized = models.ProblemTypeBase + "unauthorized"
	ProblemTypeForbidden    = models.ProblemTypeBase + "forbidden"
	ProblemTypeRateLimited  = models.ProblemTypeBase + "rate-limited"
	ProblemTypeConflict     = models.ProblemTypeBase + "conflict"
)

// WriteProblem writes an RFC 7807 Problem Details JSON response.
func WriteProblem(w http.ResponseWriter, p models.Problem) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

func problem(w http.ResponseWriter, typ, title string, status int, detail, instance string) {
	WriteProblem(w, models.Problem{
		Type:     typ,
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: instance,
	})
}

// NotFound writes a 404 problem response.
func NotFound(w http.ResponseWriter, detail, instance string) {
	problem(w, ProblemTypeNotFound, "Not Found", http.StatusNotFound, detail, instance)
}

// BadRequest writes a 400 problem response.
func BadRequest(w http.ResponseWriter, detail, instance string) {
	problem(w, ProblemTypeBadRequest, "Bad Request", http.StatusBadRequest, detail, instance)
}

// Conflict writes a 409 problem response.
func Conflict(w http.ResponseWriter, detail, instance string) {
	problem(w, ProblemTypeConflict, "Conflict", http.StatusConflict, detail, instance)
}

// Unauthorized writes a 401 problem response.
func Unauthorized(w http.ResponseWriter, detail, instance string) {
	problem(w, ProblemTypeUnauthorized, "Unauthorized", http.StatusUnauthorized, detail, instance)
}

// Forbidden writes a 403 problem response.
func Forbidden(w http.ResponseWriter, detail, instance string) {
	problem(w, ProblemTypeForbidden, "Forbidden", http.StatusForbidden, detail, instance)
}

// InternalError writes a 500 problem response.
func InternalError(w http.ResponseWriter, detail, instance string) {
	problem(w, ProblemTypeInternal, "Internal Server Error", http.StatusInternalServerError, detail, instance)
}

// RateLimited writes a 429 problem response.
func RateLimited(w http.ResponseWriter, detail, instance string) {
	problem(w, ProblemTypeRateLimited, "Too Many Requests", http.StatusTooManyRequests, detail, instance)
}
