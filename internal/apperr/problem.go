package apperr

import (
	"context"
	"encoding/json"
	"net/http"
)

type correlationIDKey struct{}

// WithCorrelationID stores a correlation id in the context so problem
// responses and request logs can carry the same identifier.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey{}, id)
}

func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationIDKey{}).(string)
	return id
}

// Problem is an RFC 7807 problem document.
type Problem struct {
	Type          string `json:"type"`
	Title         string `json:"title"`
	Status        int    `json:"status"`
	Detail        string `json:"detail,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// Write renders err as a problem document. Internal errors are masked; the
// caller is expected to log or capture them separately.
func Write(w http.ResponseWriter, r *http.Request, err error) {
	appErr := From(err)

	detail := appErr.Detail
	if appErr.Kind == KindInternal {
		detail = "an unexpected error occurred"
	}

	WriteProblem(w, r, Problem{
		Type:   "about:blank",
		Title:  appErr.Code(),
		Status: appErr.Status(),
		Detail: detail,
	})
}

func WriteProblem(w http.ResponseWriter, r *http.Request, problem Problem) {
	if problem.CorrelationID == "" {
		problem.CorrelationID = CorrelationID(r.Context())
	}
	if problem.Type == "" {
		problem.Type = "about:blank"
	}

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(problem.Status)
	_ = json.NewEncoder(w).Encode(problem)
}
