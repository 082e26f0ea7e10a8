package wish

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wishstash/internal/auth"
)

const wishID = "0193807e-0000-7000-8000-000000000001"

var (
	owner    = auth.User{ID: "0193807e-0000-7000-8000-0000000000aa", Username: "alice", Role: auth.RoleUser}
	stranger = auth.User{ID: "0193807e-0000-7000-8000-0000000000bb", Username: "mallory", Role: auth.RoleUser}
	admin    = auth.User{ID: "0193807e-0000-7000-8000-0000000000cc", Username: "root", Role: auth.RoleAdmin}
)

func wishRows(wishes ...Wish) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"id", "title", "link", "price_estimate", "notes", "owner_id", "created_at", "updated_at"})
	for _, w := range wishes {
		rows.AddRow(w.ID, w.Title, nullable(w.Link), nullable(w.PriceEstimate), nullable(w.Notes), w.OwnerID, w.CreatedAt, w.UpdatedAt)
	}
	return rows
}

func nullable[T any](v *T) any {
	if v == nil {
		return nil
	}
	return *v
}

func ownedWish() Wish {
	now := time.Now().UTC()
	return Wish{
		ID:        wishID,
		Title:     "mechanical keyboard",
		OwnerID:   owner.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func newWishRouter(t *testing.T) (*chi.Mux, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	handler := NewHandler(NewRepository(db))

	router := chi.NewRouter()
	router.Post("/wishes", handler.Create)
	router.Get("/wishes", handler.List)
	router.Get("/wishes/{id}", handler.Get)
	router.Patch("/wishes/{id}", handler.Update)
	router.Delete("/wishes/{id}", handler.Delete)

	return router, mock
}

func doAs(router *chi.Mux, user auth.User, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req = req.WithContext(auth.WithUser(context.Background(), user))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

func TestCreateWish(t *testing.T) {
	router, mock := newWishRouter(t)

	mock.ExpectExec("INSERT INTO wishes").
		WillReturnResult(sqlmock.NewResult(0, 1))

	res := doAs(router, owner, http.MethodPost, "/wishes", `{"title":"mechanical keyboard","price_estimate":120.5}`)
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())
	assert.Contains(t, res.Body.String(), owner.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateWishValidation(t *testing.T) {
	router, _ := newWishRouter(t)

	cases := []struct {
		name string
		body string
	}{
		{"empty title", `{"title":""}`},
		{"negative price", `{"title":"x","price_estimate":-1}`},
		{"bad link", `{"title":"x","link":"ftp://example.com"}`},
		{"unknown field", `{"title":"x","surprise":true}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := doAs(router, owner, http.MethodPost, "/wishes", tc.body)
			assert.Equal(t, http.StatusBadRequest, res.Code)
		})
	}
}

func TestGetWishAsOwner(t *testing.T) {
	router, mock := newWishRouter(t)

	mock.ExpectQuery("SELECT (.+) FROM wishes").
		WithArgs(wishID).
		WillReturnRows(wishRows(ownedWish()))

	res := doAs(router, owner, http.MethodGet, "/wishes/"+wishID, "")
	assert.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), "mechanical keyboard")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetWishAsStrangerIsNotFound(t *testing.T) {
	router, mock := newWishRouter(t)

	mock.ExpectQuery("SELECT (.+) FROM wishes").
		WithArgs(wishID).
		WillReturnRows(wishRows(ownedWish()))

	res := doAs(router, stranger, http.MethodGet, "/wishes/"+wishID, "")
	assert.Equal(t, http.StatusNotFound, res.Code, "existence must not leak to non-owners")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetWishAsAdmin(t *testing.T) {
	router, mock := newWishRouter(t)

	mock.ExpectQuery("SELECT (.+) FROM wishes").
		WithArgs(wishID).
		WillReturnRows(wishRows(ownedWish()))

	res := doAs(router, admin, http.MethodGet, "/wishes/"+wishID, "")
	assert.Equal(t, http.StatusOK, res.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetWishMalformedIDIsNotFound(t *testing.T) {
	router, mock := newWishRouter(t)

	res := doAs(router, owner, http.MethodGet, "/wishes/not-a-uuid", "")
	assert.Equal(t, http.StatusNotFound, res.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateWishAppliesPartialChanges(t *testing.T) {
	router, mock := newWishRouter(t)

	existing := ownedWish()
	updated := existing
	updated.Title = "split keyboard"

	mock.ExpectQuery("SELECT (.+) FROM wishes").
		WithArgs(wishID).
		WillReturnRows(wishRows(existing))
	mock.ExpectQuery("UPDATE wishes").
		WillReturnRows(wishRows(updated))

	res := doAs(router, owner, http.MethodPatch, "/wishes/"+wishID, `{"title":"split keyboard"}`)
	assert.Equal(t, http.StatusOK, res.Code, res.Body.String())
	assert.Contains(t, res.Body.String(), "split keyboard")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateWishAsStrangerIsNotFound(t *testing.T) {
	router, mock := newWishRouter(t)

	mock.ExpectQuery("SELECT (.+) FROM wishes").
		WithArgs(wishID).
		WillReturnRows(wishRows(ownedWish()))

	res := doAs(router, stranger, http.MethodPatch, "/wishes/"+wishID, `{"title":"hijacked"}`)
	assert.Equal(t, http.StatusNotFound, res.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteWish(t *testing.T) {
	router, mock := newWishRouter(t)

	mock.ExpectQuery("SELECT (.+) FROM wishes").
		WithArgs(wishID).
		WillReturnRows(wishRows(ownedWish()))
	mock.ExpectExec("DELETE FROM wishes").
		WithArgs(wishID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	res := doAs(router, owner, http.MethodDelete, "/wishes/"+wishID, "")
	assert.Equal(t, http.StatusNoContent, res.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListWishes(t *testing.T) {
	router, mock := newWishRouter(t)

	mock.ExpectQuery("SELECT (.+) FROM wishes").
		WithArgs(owner.ID, nil, 50, 0).
		WillReturnRows(wishRows(ownedWish()))

	res := doAs(router, owner, http.MethodGet, "/wishes", "")
	assert.Equal(t, http.StatusOK, res.Code, res.Body.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListWishesWithFilters(t *testing.T) {
	router, mock := newWishRouter(t)

	price := 100.0
	mock.ExpectQuery("SELECT (.+) FROM wishes").
		WithArgs(owner.ID, &price, 10, 5).
		WillReturnRows(wishRows())

	res := doAs(router, owner, http.MethodGet, "/wishes?price=100&limit=10&offset=5", "")
	assert.Equal(t, http.StatusOK, res.Code, res.Body.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListWishesRejectsBadFilters(t *testing.T) {
	router, _ := newWishRouter(t)

	for _, path := range []string{
		"/wishes?price=-3",
		"/wishes?limit=0",
		"/wishes?limit=500",
		"/wishes?offset=-1",
	} {
		res := doAs(router, owner, http.MethodGet, path, "")
		assert.Equal(t, http.StatusBadRequest, res.Code, path)
	}
}
