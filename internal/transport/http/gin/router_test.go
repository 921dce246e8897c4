package httpgin

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okryvyi/seatwave/internal/ledger"
	"github.com/okryvyi/seatwave/internal/locker"
	"github.com/okryvyi/seatwave/internal/service"
	"github.com/okryvyi/seatwave/internal/store"
)

const testSecret = "test-secret"

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svcs := service.NewServices(
		ledger.New(logger),
		store.New(),
		locker.New(),
		nil,
		nil,
		nil,
		logger,
	)

	return NewRouter(svcs, nil, nil, testSecret, logger)
}

func signToken(t *testing.T, userID int64, role string) string {
	t.Helper()

	claims := Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func doJSON(t *testing.T, r *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRouter_Healthz(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_AuthRequired(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/bookings", "", CreateBookingRequest{EventID: 1, SeatCount: 1})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(t, r, http.MethodPost, "/bookings", "garbage-token", CreateBookingRequest{EventID: 1, SeatCount: 1})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouter_AdminRequired(t *testing.T) {
	r := newTestRouter(t)
	user := signToken(t, 10, "user")

	w := doJSON(t, r, http.MethodPost, "/admin/events", user, CreateEventRequest{EventID: 1, Capacity: 12})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRouter_BookingFlow(t *testing.T) {
	r := newTestRouter(t)
	admin := signToken(t, 1, "admin")
	alice := signToken(t, 10, "user")
	bob := signToken(t, 11, "user")

	w := doJSON(t, r, http.MethodPost, "/admin/events", admin, CreateEventRequest{EventID: 1, Capacity: 24, SeatMap: true})
	require.Equal(t, http.StatusCreated, w.Code)

	// Public availability, no auth needed.
	w = doJSON(t, r, http.MethodGet, "/events/1/availability", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("ETag"))

	w = doJSON(t, r, http.MethodGet, "/events/99/availability", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Alice books A1+A2 and confirms.
	w = doJSON(t, r, http.MethodPost, "/bookings", alice, CreateBookingRequest{EventID: 1, Seats: []string{"A1", "A2"}})
	require.Equal(t, http.StatusCreated, w.Code)

	var created CreateBookingResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "confirmed", created.Booking.Status)
	assert.Len(t, created.Booking.ConfirmationCode, 9)
	aliceBookingID := created.Booking.ID

	// Bob wants the same seats and waits.
	w = doJSON(t, r, http.MethodPost, "/bookings", bob, CreateBookingRequest{EventID: 1, Seats: []string{"A1", "A2"}})
	require.Equal(t, http.StatusAccepted, w.Code)

	var waitlisted CreateBookingResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &waitlisted))
	assert.Equal(t, "waitlist", waitlisted.Booking.Status)
	assert.ElementsMatch(t, []string{"A1", "A2"}, waitlisted.UnavailableSeats)

	// Bob cannot read Alice's booking.
	w = doJSON(t, r, http.MethodGet, "/bookings/"+itoa64(aliceBookingID), bob, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Bob cannot cancel Alice's booking either.
	w = doJSON(t, r, http.MethodPut, "/bookings/"+itoa64(aliceBookingID)+"/cancel", bob, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Alice cancels; Bob is promoted in the same response.
	w = doJSON(t, r, http.MethodPut, "/bookings/"+itoa64(aliceBookingID)+"/cancel", alice, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var cancelled CancelBookingResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cancelled))
	assert.Equal(t, "cancelled", cancelled.Booking.Status)
	require.Len(t, cancelled.Promoted, 1)
	assert.Equal(t, waitlisted.Booking.ID, cancelled.Promoted[0].ID)
	assert.Equal(t, "confirmed", cancelled.Promoted[0].Status)

	// Cancelling again conflicts.
	w = doJSON(t, r, http.MethodPut, "/bookings/"+itoa64(aliceBookingID)+"/cancel", alice, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	// Bob's history shows the promoted booking.
	w = doJSON(t, r, http.MethodGet, "/bookings?status=confirmed", bob, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var list ListBookingsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, 1, list.Total)
}

func TestRouter_CreateBookingValidation(t *testing.T) {
	r := newTestRouter(t)
	admin := signToken(t, 1, "admin")
	user := signToken(t, 10, "user")

	w := doJSON(t, r, http.MethodPost, "/admin/events", admin, CreateEventRequest{EventID: 1, Capacity: 12, SeatMap: true})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, r, http.MethodPost, "/bookings", user, CreateBookingRequest{EventID: 1})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodPost, "/bookings", user, CreateBookingRequest{EventID: 1, Seats: []string{"Z99"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []string{"Z99"}, resp.Seats)

	w = doJSON(t, r, http.MethodPost, "/bookings", user, CreateBookingRequest{EventID: 99, SeatCount: 1})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_ResizeCapacity(t *testing.T) {
	r := newTestRouter(t)
	admin := signToken(t, 1, "admin")
	user := signToken(t, 10, "user")

	w := doJSON(t, r, http.MethodPost, "/admin/events", admin, CreateEventRequest{EventID: 1, Capacity: 2, SeatMap: false})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, r, http.MethodPost, "/bookings", user, CreateBookingRequest{EventID: 1, SeatCount: 2})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, r, http.MethodPut, "/admin/events/1/capacity", admin, ResizeEventRequest{Capacity: 1})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(t, r, http.MethodPut, "/admin/events/1/capacity", admin, ResizeEventRequest{Capacity: 10})
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodPut, "/admin/events/99/capacity", admin, ResizeEventRequest{Capacity: 10})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_SeatMapBulkEvent(t *testing.T) {
	r := newTestRouter(t)
	admin := signToken(t, 1, "admin")

	w := doJSON(t, r, http.MethodPost, "/admin/events", admin, CreateEventRequest{EventID: 1, Capacity: 50, SeatMap: false})
	require.Equal(t, http.StatusCreated, w.Code)

	// Bulk-count events have no seat map to serve.
	w = doJSON(t, r, http.MethodGet, "/events/1/seats", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, r, http.MethodGet, "/events/1/availability", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestIdemResult_ReplayKeepsStatus(t *testing.T) {
	resp := CreateBookingResponse{
		Booking:          BookingResponse{ID: 7, Status: "waitlist"},
		UnavailableSeats: []string{"A1"},
	}

	payload, err := encodeIdemResult(http.StatusAccepted, resp)
	require.NoError(t, err)

	status, body := decodeIdemResult(payload)
	assert.Equal(t, http.StatusAccepted, status)

	var got CreateBookingResponse
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, resp, got)

	// Payloads without an envelope fall back to the original body as 201.
	status, body = decodeIdemResult(`{"booking":{"id":7}}`)
	assert.Equal(t, http.StatusCreated, status)
	assert.JSONEq(t, `{"booking":{"id":7}}`, string(body))
}

func itoa64(v int64) string {
	return strconv.FormatInt(v, 10)
}
