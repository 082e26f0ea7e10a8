package auth

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/go-chi/chi/v5"

	"wishstash/internal/apperr"
	"wishstash/internal/observability"
)

const maxJSONBodyBytes = 1 << 20

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	body, ok := decodeCredentials(w, r)
	if !ok {
		return
	}

	_, token, err := h.service.Register(r.Context(), body.Username, body.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, token)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	body, ok := decodeCredentials(w, r)
	if !ok {
		return
	}

	origin := observability.ClientIP(r)
	token, err := h.service.Login(r.Context(), body.Username, body.Password, origin)
	if err != nil {
		if apperr.IsKind(err, apperr.KindRateLimited) {
			if retryAfter := h.service.limiter.RetryAfter(origin); retryAfter > 0 {
				w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
			}
		}
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, token)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	token, err := bearerToken(r)
	if err != nil {
		apperr.Write(w, r, err)
		return
	}

	if err := h.service.Logout(r.Context(), token); err != nil {
		writeServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Promote(w http.ResponseWriter, r *http.Request) {
	actor, ok := UserFromContext(r.Context())
	if !ok {
		apperr.Write(w, r, apperr.InvalidToken("missing authenticated user"))
		return
	}

	username := strings.TrimSpace(chi.URLParam(r, "username"))
	_, token, err := h.service.Promote(r.Context(), actor, username)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, token)
}

func decodeCredentials(w http.ResponseWriter, r *http.Request) (credentialsRequest, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	var body credentialsRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		apperr.Write(w, r, apperr.Validation("invalid json body"))
		return credentialsRequest{}, false
	}

	body.Username = strings.TrimSpace(body.Username)

	return body, true
}

func bearerToken(r *http.Request) (string, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", apperr.InvalidToken("missing authorization token")
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", apperr.InvalidToken("invalid authorization format")
	}

	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", apperr.InvalidToken("invalid authorization token")
	}

	return token, nil
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if appErr := apperr.From(err); appErr.Kind == apperr.KindInternal {
		sentry.CaptureException(appErr)
	}
	apperr.Write(w, r, err)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
