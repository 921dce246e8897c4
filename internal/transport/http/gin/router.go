package httpgin

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/okryvyi/seatwave/internal/domain"
	redisx "github.com/okryvyi/seatwave/internal/redis"
	"github.com/okryvyi/seatwave/internal/service"
	"github.com/okryvyi/seatwave/internal/service/allocation"
	"github.com/okryvyi/seatwave/internal/service/query"
)

func NewRouter(
	svcs *service.Services,
	idem *redisx.IdempotencyStore,
	limiter *redisx.SlidingWindowLimiter,
	jwtSecret string,
	logger *slog.Logger,
	middlewares ...gin.HandlerFunc,
) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery(), LoggingMiddleware(logger), RequestIDMiddleware(), CORS())
	for _, m := range middlewares {
		if m != nil {
			r.Use(m)
		}
	}

	// Swagger UI
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// health
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Public API
	r.GET("/events/:id/availability", handleGetAvailability(svcs))
	r.GET("/events/:id/seats", handleGetSeatMap(svcs))

	auth := r.Group("/", AuthMiddleware(jwtSecret))
	{
		auth.POST("/bookings", handleCreateBooking(svcs, idem, limiter))
		auth.GET("/bookings", handleListBookings(svcs))
		auth.GET("/bookings/:id", handleGetBooking(svcs))
		auth.PUT("/bookings/:id/cancel", handleCancelBooking(svcs))
	}

	adm := r.Group("/admin", AuthMiddleware(jwtSecret), AdminOnly())
	{
		adm.POST("/events", handleCreateEvent(svcs))
		adm.PUT("/events/:id/capacity", handleResizeEvent(svcs))
	}

	return r
}

// --- Handlers with Swagger annotations ---

// @Summary  Get availability counters
// @Param    id  path  int  true  "Event ID"
// @Success  200  {object}  domain.Availability
// @Failure  404  {object}  ErrorResponse
// @Router   /events/{id}/availability [get]
func handleGetAvailability(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		eventID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		avail, err := svcs.Query.Availability(c.Request.Context(), eventID)
		if err != nil {
			respondErr(c, err)
			return
		}
		writeJSONWithCache(c, http.StatusOK, avail, "public, max-age=5", true)
	}
}

// @Summary  Get seat map with prices and statuses
// @Param    id  path  int  true  "Event ID"
// @Success  200  {array}   domain.SeatView
// @Failure  404  {object}  ErrorResponse
// @Router   /events/{id}/seats [get]
func handleGetSeatMap(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		eventID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		seats, err := svcs.Query.SeatMap(c.Request.Context(), eventID)
		if err != nil {
			respondErr(c, err)
			return
		}
		writeJSONWithCache(c, http.StatusOK, seats, "public, max-age=5", true)
	}
}

// @Summary  Create booking (idempotent)
// @Param    req body  CreateBookingRequest true "payload"
// @Header   201 {string} Idempotency-Key "echo"
// @Success  201 {object} CreateBookingResponse "confirmed"
// @Success  202 {object} CreateBookingResponse "waitlisted"
// @Failure  400 {object} ErrorResponse
// @Failure  404 {object} ErrorResponse
// @Failure  409 {object} ErrorResponse "duplicate booking / idem in progress"
// @Failure  429 {object} ErrorResponse "rate limited"
// @Security BearerAuth
// @Router   /bookings [post]
func handleCreateBooking(
	svcs *service.Services,
	idem *redisx.IdempotencyStore,
	limiter *redisx.SlidingWindowLimiter,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateBookingRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		if req.SeatCount == 0 && len(req.Seats) == 0 {
			badRequest(c, "seat_count or seats required")
			return
		}

		userID, _ := callerIdentity(c)

		if limiter != nil {
			allowed, _, retryAfter, err := limiter.Allow(c.Request.Context(), "user:"+strconv.FormatInt(userID, 10))
			if err == nil && !allowed {
				c.Header("Retry-After", strconv.Itoa(int(retryAfter/time.Second)+1))
				c.JSON(http.StatusTooManyRequests, ErrorResponse{Error: "rate limited"})
				return
			}
		}

		idemKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
		var idemStorageKey string
		if idem != nil && idemKey != "" {
			idemStorageKey = redisx.KeyIdemBooking(userID, idemKey)

			if payload, ok, _ := idem.GetResult(c.Request.Context(), idemStorageKey); ok {
				replayIdemResult(c, idemKey, payload)
				return
			}

			locked, err := idem.AcquireLock(c.Request.Context(), idemStorageKey, 60*time.Second)
			if err != nil {
				respondErr(c, err)
				return
			}
			if !locked {
				if payload, ok, _ := idem.GetResult(c.Request.Context(), idemStorageKey); ok {
					replayIdemResult(c, idemKey, payload)
					return
				}
				c.Header("Retry-After", "1")
				c.JSON(http.StatusConflict, ErrorResponse{Error: "idempotency key in progress"})
				return
			}
		}

		res, err := svcs.Allocation.Book(c.Request.Context(), req.EventID, userID, req.SeatCount, req.Seats)
		if err != nil {
			if idemStorageKey != "" && idem != nil {
				_ = idem.Release(c.Request.Context(), idemStorageKey)
			}
			respondErr(c, err)
			return
		}

		resp := CreateBookingResponse{
			Booking:          toBookingResponse(res.Booking),
			UnavailableSeats: res.UnavailableSeats,
		}

		status := http.StatusCreated
		if res.Waitlisted() {
			status = http.StatusAccepted
		}

		if idemStorageKey != "" && idem != nil {
			if payload, err := encodeIdemResult(status, resp); err == nil {
				_ = idem.SaveResult(c.Request.Context(), idemStorageKey, payload)
			}
			c.Header("Idempotency-Key", idemKey)
		}

		c.JSON(status, resp)
	}
}

// idemResult is the stored shape of an idempotent booking response: the body
// plus the status it was first served with, so a replayed waitlist response
// stays 202 and a confirmed one stays 201.
type idemResult struct {
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body"`
}

func encodeIdemResult(status int, resp any) (string, error) {
	body, err := json.Marshal(resp)
	if err != nil {
		return "", err
	}
	b, err := json.Marshal(idemResult{Status: status, Body: body})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeIdemResult(payload string) (int, []byte) {
	var rec idemResult
	if err := json.Unmarshal([]byte(payload), &rec); err != nil || rec.Status == 0 {
		return http.StatusCreated, []byte(payload)
	}
	return rec.Status, rec.Body
}

func replayIdemResult(c *gin.Context, idemKey, payload string) {
	status, body := decodeIdemResult(payload)
	c.Header("Idempotency-Key", idemKey)
	c.Data(status, "application/json; charset=utf-8", body)
}

// @Summary  List my bookings
// @Param    status  query  string  false  "confirmed|waitlist|cancelled"
// @Param    page    query  int     false  "page"
// @Param    limit   query  int     false  "page size"
// @Success  200 {object} ListBookingsResponse
// @Security BearerAuth
// @Router   /bookings [get]
func handleListBookings(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _ := callerIdentity(c)

		var status *domain.BookingStatus
		if s := c.Query("status"); s != "" {
			st := domain.BookingStatus(s)
			switch st {
			case domain.BookingConfirmed, domain.BookingWaitlist, domain.BookingCancelled:
				status = &st
			default:
				badRequest(c, "invalid status")
				return
			}
		}

		page := parseIntDefault(c.Query("page"), 1)
		limit := parseIntDefault(c.Query("limit"), 20)

		res, err := svcs.Query.ListUserBookings(c.Request.Context(), userID, status, page, limit)
		if err != nil {
			respondErr(c, err)
			return
		}

		bookings := make([]BookingResponse, 0, len(res.Bookings))
		for _, b := range res.Bookings {
			bookings = append(bookings, toBookingResponse(b))
		}

		c.JSON(http.StatusOK, ListBookingsResponse{
			Bookings: bookings,
			Total:    res.Total,
			Page:     res.Page,
			Limit:    res.Limit,
		})
	}
}

// @Summary  Get booking
// @Param    id  path  int  true  "Booking ID"
// @Success  200 {object} BookingResponse
// @Failure  403 {object} ErrorResponse
// @Failure  404 {object} ErrorResponse
// @Security BearerAuth
// @Router   /bookings/{id} [get]
func handleGetBooking(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		bookingID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		userID, isAdmin := callerIdentity(c)

		b, err := svcs.Query.GetBooking(c.Request.Context(), bookingID, userID, isAdmin)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, toBookingResponse(b))
	}
}

// @Summary  Cancel booking, promoting the waitlist
// @Param    id  path  int  true  "Booking ID"
// @Success  200 {object} CancelBookingResponse
// @Failure  403 {object} ErrorResponse
// @Failure  404 {object} ErrorResponse
// @Failure  409 {object} ErrorResponse "already cancelled"
// @Security BearerAuth
// @Router   /bookings/{id}/cancel [put]
func handleCancelBooking(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		bookingID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		userID, isAdmin := callerIdentity(c)

		res, err := svcs.Allocation.Cancel(c.Request.Context(), bookingID, userID, isAdmin)
		if err != nil {
			respondErr(c, err)
			return
		}

		promoted := make([]BookingResponse, 0, len(res.Promoted))
		for _, b := range res.Promoted {
			promoted = append(promoted, toBookingResponse(b))
		}

		c.JSON(http.StatusOK, CancelBookingResponse{
			Booking:  toBookingResponse(res.Booking),
			Promoted: promoted,
		})
	}
}

// @Summary  Create event ledger
// @Param    req body  CreateEventRequest true "payload"
// @Success  201 {object} map[string]any
// @Failure  400 {object} ErrorResponse
// @Security BearerAuth
// @Router   /admin/events [post]
func handleCreateEvent(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateEventRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		if err := svcs.Allocation.InitializeEvent(c.Request.Context(), req.EventID, req.Capacity, req.SeatMap); err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"event_id": req.EventID, "capacity": req.Capacity})
	}
}

// @Summary  Change event capacity
// @Param    id   path  int  true  "Event ID"
// @Param    req  body  ResizeEventRequest true "payload"
// @Success  200 {object} map[string]any
// @Failure  404 {object} ErrorResponse
// @Failure  409 {object} ErrorResponse "capacity below occupancy"
// @Security BearerAuth
// @Router   /admin/events/{id}/capacity [put]
func handleResizeEvent(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		eventID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		var req ResizeEventRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		if err := svcs.Allocation.ResizeEvent(c.Request.Context(), eventID, req.Capacity); err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"event_id": eventID, "capacity": req.Capacity})
	}
}

// --- Helpers ---

func parseInt64Param(c *gin.Context, name string) (int64, bool) {
	s := c.Param(name)
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return v, true
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}

func respondErr(c *gin.Context, err error) {
	if err == nil {
		c.Status(http.StatusNoContent)
		return
	}

	var unknownSeats *allocation.UnknownSeatsError

	switch {
	// allocation service
	case errors.Is(err, allocation.ErrEventNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "event not found"})
		return
	case errors.Is(err, allocation.ErrBookingNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "booking not found"})
		return
	case errors.Is(err, allocation.ErrDuplicateBooking):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "active booking already exists for this event"})
		return
	case errors.Is(err, allocation.ErrForbidden):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "forbidden"})
		return
	case errors.Is(err, allocation.ErrAlreadyCancelled):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "booking already cancelled"})
		return
	case errors.Is(err, allocation.ErrInvalidCapacity):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid capacity"})
		return
	case errors.Is(err, allocation.ErrCapacityBelowOccupied):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "capacity below current occupancy"})
		return
	case errors.Is(err, allocation.ErrInvalidSeatCount):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid seat count"})
		return
	case errors.Is(err, allocation.ErrSeatSelectionUnsupported):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "event does not support seat selection"})
		return
	case errors.As(err, &unknownSeats):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "unknown seats", Seats: unknownSeats.Labels})
		return
	// query service
	case errors.Is(err, query.ErrEventNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "event not found"})
		return
	case errors.Is(err, query.ErrBookingNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "booking not found"})
		return
	case errors.Is(err, query.ErrNoSeatMap):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "event has no seat map"})
		return
	case errors.Is(err, query.ErrForbidden):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "forbidden"})
		return
	}

	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
}
