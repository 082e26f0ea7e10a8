package wish

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/getsentry/sentry-go"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"wishstash/internal/apperr"
	"wishstash/internal/auth"
)

const (
	maxJSONBodyBytes = 1 << 20
	defaultListLimit = 50
	maxListLimit     = 100
)

type Handler struct {
	repo *Repository
}

func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		apperr.Write(w, r, apperr.InvalidToken("missing authenticated user"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	var input CreateInput
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&input); err != nil {
		apperr.Write(w, r, apperr.Validation("invalid json body"))
		return
	}

	if err := validateCreate(input); err != nil {
		apperr.Write(w, r, err)
		return
	}

	created, err := h.repo.Create(r.Context(), user.ID, input)
	if err != nil {
		sentry.CaptureException(err)
		apperr.Write(w, r, apperr.Internal("create wish", err))
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		apperr.Write(w, r, apperr.InvalidToken("missing authenticated user"))
		return
	}

	query := r.URL.Query()

	var maxPrice *float64
	if raw := strings.TrimSpace(query.Get("price")); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed < 0 {
			apperr.Write(w, r, apperr.Validation("price must be a non-negative number"))
			return
		}
		maxPrice = &parsed
	}

	limit := defaultListLimit
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxListLimit {
			apperr.Write(w, r, apperr.Validation("limit must be between 1 and 100"))
			return
		}
		limit = parsed
	}

	offset := 0
	if raw := strings.TrimSpace(query.Get("offset")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			apperr.Write(w, r, apperr.Validation("offset must be non-negative"))
			return
		}
		offset = parsed
	}

	wishes, err := h.repo.ListByOwner(r.Context(), user.ID, maxPrice, limit, offset)
	if err != nil {
		sentry.CaptureException(err)
		apperr.Write(w, r, apperr.Internal("list wishes", err))
		return
	}

	writeJSON(w, http.StatusOK, wishes)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.loadAccessible(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, existing)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.loadAccessible(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	var input UpdateInput
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&input); err != nil {
		apperr.Write(w, r, apperr.Validation("invalid json body"))
		return
	}

	if err := applyUpdate(&existing, input); err != nil {
		apperr.Write(w, r, err)
		return
	}

	updated, err := h.repo.Update(r.Context(), existing)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			apperr.Write(w, r, apperr.NotFound("wish not found"))
			return
		}
		sentry.CaptureException(err)
		apperr.Write(w, r, apperr.Internal("update wish", err))
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.loadAccessible(w, r)
	if !ok {
		return
	}

	if err := h.repo.Delete(r.Context(), existing.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			apperr.Write(w, r, apperr.NotFound("wish not found"))
			return
		}
		sentry.CaptureException(err)
		apperr.Write(w, r, apperr.Internal("delete wish", err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// loadAccessible fetches the wish and applies the ownership rule: the owner
// or an admin may touch it, everyone else sees NotFound so the resource's
// existence is not leaked.
func (h *Handler) loadAccessible(w http.ResponseWriter, r *http.Request) (Wish, bool) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		apperr.Write(w, r, apperr.InvalidToken("missing authenticated user"))
		return Wish{}, false
	}

	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		apperr.Write(w, r, apperr.NotFound("wish not found"))
		return Wish{}, false
	}

	existing, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			apperr.Write(w, r, apperr.NotFound("wish not found"))
			return Wish{}, false
		}
		sentry.CaptureException(err)
		apperr.Write(w, r, apperr.Internal("load wish", err))
		return Wish{}, false
	}

	if existing.OwnerID != user.ID && !user.IsAdmin() {
		apperr.Write(w, r, apperr.NotFound("wish not found"))
		return Wish{}, false
	}

	return existing, true
}

func validateCreate(input CreateInput) error {
	if err := validateTitle(input.Title); err != nil {
		return err
	}
	if err := validateLink(input.Link); err != nil {
		return err
	}
	return validatePrice(input.PriceEstimate)
}

func applyUpdate(existing *Wish, input UpdateInput) error {
	if input.Title != nil {
		if err := validateTitle(*input.Title); err != nil {
			return err
		}
		existing.Title = *input.Title
	}
	if input.Link != nil {
		if err := validateLink(input.Link); err != nil {
			return err
		}
		existing.Link = input.Link
	}
	if input.PriceEstimate != nil {
		if err := validatePrice(input.PriceEstimate); err != nil {
			return err
		}
		existing.PriceEstimate = input.PriceEstimate
	}
	if input.Notes != nil {
		existing.Notes = input.Notes
	}

	return nil
}

func validateTitle(title string) error {
	length := utf8.RuneCountInString(strings.TrimSpace(title))
	if length < 1 || length > 255 {
		return apperr.Validation("title must be 1-255 characters")
	}
	return nil
}

func validateLink(link *string) error {
	if link == nil {
		return nil
	}

	parsed, err := url.Parse(*link)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return apperr.Validation("link must be an http or https URL")
	}

	return nil
}

func validatePrice(price *float64) error {
	if price != nil && *price < 0 {
		return apperr.Validation("price_estimate must be non-negative")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
