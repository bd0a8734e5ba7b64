package handler_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/iliyamo/screening-reservation/internal/config"
	"github.com/iliyamo/screening-reservation/internal/handler"
	"github.com/iliyamo/screening-reservation/internal/ledger"
	"github.com/iliyamo/screening-reservation/internal/model"
	"github.com/iliyamo/screening-reservation/internal/payment"
	"github.com/iliyamo/screening-reservation/internal/repository"
	"github.com/iliyamo/screening-reservation/internal/router"
	"github.com/iliyamo/screening-reservation/internal/service"
	"github.com/iliyamo/screening-reservation/internal/utils"
)

const secret = "test-secret"

type api struct {
	e       *echo.Echo
	users   *repository.MemoryUsers
	changes atomic.Int32
}

func newAPI(t *testing.T) *api {
	t.Helper()
	log := zaptest.NewLogger(t)
	mem := repository.NewMemoryStore()
	deps := service.Deps{
		Reservations: mem.Reservations(),
		Screenings:   mem.Screenings(),
		Ledger:       ledger.New(),
		Payments:     payment.NewSimulated(0),
		Logger:       log,
	}
	a := &api{e: echo.New(), users: mem.Users()}
	deps.CatalogChanged = func(context.Context) { a.changes.Add(1) }
	engine := service.NewEngine(deps)
	catalog := service.NewCatalog(deps, service.DefaultMaxSeats)

	cfg := config.Config{JWTSecret: secret, AccessTTLMin: 15, BcryptCost: 4}
	router.Register(a.e, router.Handlers{
		Auth:         handler.NewAuthHandler(cfg, a.users, log),
		Screenings:   handler.NewScreeningHandler(catalog, engine, log),
		Reservations: handler.NewReservationHandler(engine, log),
	}, router.Middleware{}, secret)
	return a
}

func (a *api) token(t *testing.T, id uint64, role string) string {
	t.Helper()
	tok, err := utils.NewAccessToken(secret, id, role, 15)
	require.NoError(t, err)
	return tok.Token
}

func (a *api) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var payload string
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		payload = string(b)
	}
	req := httptest.NewRequest(method, path, strings.NewReader(payload))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

type errBody struct {
	Kind  string `json:"kind"`
	Error string `json:"error"`
}

func (a *api) createScreening(t *testing.T, seats int) model.Screening {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/v1/screenings", a.token(t, 1, model.RoleAdmin), map[string]any{
		"movie_id":    550,
		"show_time":   time.Now().Add(48 * time.Hour).UTC().Format(time.RFC3339),
		"total_seats": seats,
		"price":       "12.50",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[model.Screening](t, rec)
}

func bookBody(screeningID uint64, seat string) map[string]any {
	return map[string]any{
		"screening_id": screeningID,
		"seat":         seat,
		"payment": map[string]any{
			"card_number":  "4111 1111 1111 1111",
			"expiry_month": 12,
			"expiry_year":  2099,
			"cvv":          "123",
		},
	}
}

func TestHealth(t *testing.T) {
	a := newAPI(t)
	rec := a.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRegisterLoginMe(t *testing.T) {
	a := newAPI(t)
	creds := map[string]string{"email": "Alice@Example.com", "password": "correct horse"}

	rec := a.do(t, http.MethodPost, "/v1/auth/register", "", creds)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = a.do(t, http.MethodPost, "/v1/auth/register", "", creds)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "EmailExists", decode[errBody](t, rec).Kind)

	rec = a.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{"email": "alice@example.com", "password": "wrong password"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = a.do(t, http.MethodPost, "/v1/auth/login", "", creds)
	require.Equal(t, http.StatusOK, rec.Code)
	var login struct {
		User struct {
			ID    uint64 `json:"id"`
			Email string `json:"email"`
			Role  string `json:"role"`
		} `json:"user"`
		Access utils.AccessToken `json:"access"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &login))
	assert.Equal(t, "alice@example.com", login.User.Email)
	assert.Equal(t, model.RoleUser, login.User.Role)

	rec = a.do(t, http.MethodGet, "/v1/me", login.Access.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"alice@example.com"`)
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	a := newAPI(t)
	rec := a.do(t, http.MethodPost, "/v1/auth/register", "", map[string]string{"email": "bob@example.com", "password": "short"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "InvalidInput", decode[errBody](t, rec).Kind)
}

func TestScreeningAdminRoutes(t *testing.T) {
	a := newAPI(t)
	user := a.token(t, 10, model.RoleUser)

	rec := a.do(t, http.MethodPost, "/v1/screenings", "", map[string]any{})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = a.do(t, http.MethodPost, "/v1/screenings", user, map[string]any{})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	s := a.createScreening(t, 12)
	assert.Equal(t, "12.50", s.PriceCents.String())
	assert.EqualValues(t, 1, a.changes.Load())

	rec = a.do(t, http.MethodGet, "/v1/screenings", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]model.Screening](t, rec), 1)

	rec = a.do(t, http.MethodGet, "/v1/screenings?limit=-1", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, http.MethodGet, fmt.Sprintf("/v1/screenings/%d", s.ID), "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(t, http.MethodDelete, fmt.Sprintf("/v1/screenings/%d", s.ID), a.token(t, 1, model.RoleAdmin), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.EqualValues(t, 2, a.changes.Load())

	rec = a.do(t, http.MethodGet, fmt.Sprintf("/v1/screenings/%d", s.ID), "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NotFound", decode[errBody](t, rec).Kind)
}

func TestBookSeatsAndCancelOverHTTP(t *testing.T) {
	a := newAPI(t)
	s := a.createScreening(t, 12)
	alice := a.token(t, 10, model.RoleUser)
	bob := a.token(t, 11, model.RoleUser)

	rec := a.do(t, http.MethodPost, "/v1/reservations", alice, bookBody(s.ID, "B2"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	res := decode[model.Reservation](t, rec)
	assert.Equal(t, "B2", res.Seat)
	assert.Equal(t, model.StatusActive, res.Status)
	assert.Equal(t, "1111", res.Payment.CardLast4)
	assert.NotEmpty(t, res.Payment.Message)

	rec = a.do(t, http.MethodPost, "/v1/reservations", bob, bookBody(s.ID, "B2"))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "SeatUnavailable", decode[errBody](t, rec).Kind)

	rec = a.do(t, http.MethodGet, fmt.Sprintf("/v1/screenings/%d/seats", s.ID), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var seats struct {
		TotalSeats     int      `json:"total_seats"`
		AvailableCount int      `json:"available_count"`
		TakenCount     int      `json:"taken_count"`
		TakenSeats     []string `json:"taken_seats"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &seats))
	assert.Equal(t, 12, seats.TotalSeats)
	assert.Equal(t, 11, seats.AvailableCount)
	assert.Equal(t, []string{"B2"}, seats.TakenSeats)

	rec = a.do(t, http.MethodGet, fmt.Sprintf("/v1/reservations/%d", res.ID), bob, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = a.do(t, http.MethodPost, fmt.Sprintf("/v1/reservations/%d/cancel", res.ID), bob, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.do(t, http.MethodDelete, fmt.Sprintf("/v1/screenings/%d", s.ID), a.token(t, 1, model.RoleAdmin), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "HasActiveReservations", decode[errBody](t, rec).Kind)

	rec = a.do(t, http.MethodPost, fmt.Sprintf("/v1/reservations/%d/cancel", res.ID), alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.StatusCancelled, decode[model.Reservation](t, rec).Status)

	rec = a.do(t, http.MethodPost, fmt.Sprintf("/v1/reservations/%d/cancel", res.ID), alice, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "AlreadyCancelled", decode[errBody](t, rec).Kind)

	rec = a.do(t, http.MethodPost, "/v1/reservations", bob, bookBody(s.ID, "B2"))
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = a.do(t, http.MethodGet, "/v1/reservations", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]model.Reservation](t, rec), 1)

	rec = a.do(t, http.MethodGet, "/v1/users/10/reservations", bob, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = a.do(t, http.MethodGet, "/v1/users/10/reservations", a.token(t, 1, model.RoleAdmin), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBookErrorsOverHTTP(t *testing.T) {
	a := newAPI(t)
	s := a.createScreening(t, 12)
	alice := a.token(t, 10, model.RoleUser)

	rec := a.do(t, http.MethodPost, "/v1/reservations", "", bookBody(s.ID, "A1"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = a.do(t, http.MethodPost, "/v1/reservations", alice, bookBody(s.ID, "Z9"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "InvalidSeat", decode[errBody](t, rec).Kind)

	rec = a.do(t, http.MethodPost, "/v1/reservations", alice, bookBody(s.ID+100, "A1"))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	declined := bookBody(s.ID, "A1")
	declined["payment"] = map[string]any{"card_number": "5500000000000004"}
	rec = a.do(t, http.MethodPost, "/v1/reservations", alice, declined)
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	assert.Equal(t, "PaymentDeclined", decode[errBody](t, rec).Kind)

	alias := bookBody(s.ID, "")
	alias["seat_number"] = "A1"
	rec = a.do(t, http.MethodPost, "/v1/reservations", alice, alias)
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = a.do(t, http.MethodGet, "/v1/reservations/abc", alice, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
