package httpgin

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/kirinyoku/seatflow/internal/domain"
	redisrepo "github.com/kirinyoku/seatflow/internal/repository/redis"
	"github.com/kirinyoku/seatflow/internal/service"
	"github.com/kirinyoku/seatflow/internal/session"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

const submitLockTTL = 60 * time.Second

func NewRouter(
	svcs *service.Services,
	idem *redisrepo.IdempotencyStore,
	logger *slog.Logger,
	middlewares ...gin.HandlerFunc,
) *gin.Engine {
	registerValidators()

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
		c.JSON(http.StatusOK, gin.H{
			"status":   "ok",
			"sessions": svcs.Sessions.Len(),
		})
	})

	r.POST("/sessions", handleCreateSession(svcs))

	s := r.Group("/sessions/:id")
	{
		s.GET("", handleGetSession(svcs))
		s.DELETE("", handleCloseSession(svcs))

		s.GET("/segments/:idx/seatmap", handleGetSeatMap(svcs))
		s.POST("/segments/:idx/seats", handleSelectSeat(svcs))
		s.PUT("/segments/:idx/seats", handleSetSeats(svcs))
		s.DELETE("/segments/:idx/seats/:code", handleDeselectSeat(svcs))
		s.POST("/segments/:idx/availability", handleCheckAvailability(svcs))
		s.GET("/segments/:idx/availability", handleGetAvailability(svcs))

		s.PUT("/baggage", handleSetBaggage(svcs))
		s.PUT("/voucher", handleApplyVoucher(svcs))
		s.DELETE("/voucher", handleRemoveVoucher(svcs))
		s.GET("/price", handleGetPrice(svcs))

		s.GET("/notices", handleListNotices(svcs))
		s.DELETE("/notices/:key", handleDismissNotice(svcs))
		s.GET("/events", handleEvents(svcs, logger))

		s.POST("/submit", handleSubmit(svcs, idem, logger))
		s.GET("/submissions", handleListSubmissions(svcs))
	}

	return r
}

// @Summary  Start a booking session
// @Param    req body  CreateSessionRequest true "payload"
// @Success  201 {object} CreateSessionResponse
// @Failure  400 {object} ErrorResponse
// @Failure  404 {object} ErrorResponse
// @Failure  502 {object} ErrorResponse
// @Router   /sessions [post]
func handleCreateSession(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateSessionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		s, err := svcs.Sessions.Create(c.Request.Context(), session.CreateInput{
			Passengers: domain.Passengers{
				Adults:   req.Passengers.Adults,
				Children: req.Passengers.Children,
				Infants:  req.Passengers.Infants,
			},
			FlightIDs: req.FlightIDs,
		})
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, CreateSessionResponse{
			SessionID: s.ID().String(),
			State:     s.State(),
		})
	}
}

// @Summary  Get session state
// @Param    id  path  string  true  "Session ID (uuid)"
// @Success  200 {object} session.State
// @Failure  404 {object} ErrorResponse
// @Router   /sessions/{id} [get]
func handleGetSession(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := lookupSession(c, svcs)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, s.State())
	}
}

// @Summary  Close session
// @Param    id  path  string  true  "Session ID (uuid)"
// @Success  204
// @Failure  404 {object} ErrorResponse
// @Router   /sessions/{id} [delete]
func handleCloseSession(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseSessionID(c)
		if !ok {
			return
		}
		if err := svcs.Sessions.Close(id); err != nil {
			respondErr(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// @Summary  Render seat map
// @Param    id   path  string  true  "Session ID (uuid)"
// @Param    idx  path  int     true  "Segment index"
// @Success  200 {object} seatmap.View
// @Failure  400 {object} ErrorResponse
// @Router   /sessions/{id}/segments/{idx}/seatmap [get]
func handleGetSeatMap(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, idx, ok := lookupSegment(c, svcs)
		if !ok {
			return
		}
		view, err := s.SeatMap(idx)
		if err != nil {
			respondErr(c, err)
			return
		}
		// ETag + Cache-Control 5s
		writeJSONWithCache(c, http.StatusOK, view, "private, max-age=5", true)
	}
}

// @Summary  Toggle a seat
// @Param    id   path  string  true  "Session ID (uuid)"
// @Param    idx  path  int     true  "Segment index"
// @Param    req  body  SelectSeatRequest true "payload"
// @Success  200 {object} SeatsResponse
// @Failure  409 {object} ErrorResponse
// @Router   /sessions/{id}/segments/{idx}/seats [post]
func handleSelectSeat(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, idx, ok := lookupSegment(c, svcs)
		if !ok {
			return
		}
		var req SelectSeatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		seats, err := s.SelectSeat(idx, strings.ToUpper(req.SeatCode))
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, SeatsResponse{Segment: idx, Seats: seats})
	}
}

// @Summary  Replace the selection of a segment
// @Param    id   path  string  true  "Session ID (uuid)"
// @Param    idx  path  int     true  "Segment index"
// @Param    req  body  SetSeatsRequest true "payload"
// @Success  200 {object} SeatsResponse
// @Failure  409 {object} ErrorResponse
// @Router   /sessions/{id}/segments/{idx}/seats [put]
func handleSetSeats(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, idx, ok := lookupSegment(c, svcs)
		if !ok {
			return
		}
		var req SetSeatsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		codes := make([]string, 0, len(req.SeatCodes))
		for _, code := range req.SeatCodes {
			codes = append(codes, strings.ToUpper(code))
		}
		seats, err := s.SetSeats(idx, codes)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, SeatsResponse{Segment: idx, Seats: seats})
	}
}

// @Summary  Deselect a seat
// @Param    id    path  string  true  "Session ID (uuid)"
// @Param    idx   path  int     true  "Segment index"
// @Param    code  path  string  true  "Seat code"
// @Success  200 {object} SeatsResponse
// @Router   /sessions/{id}/segments/{idx}/seats/{code} [delete]
func handleDeselectSeat(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, idx, ok := lookupSegment(c, svcs)
		if !ok {
			return
		}
		seats, err := s.DeselectSeat(idx, strings.ToUpper(c.Param("code")))
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, SeatsResponse{Segment: idx, Seats: seats})
	}
}

// @Summary  Check availability of the selected seats now
// @Param    id   path  string  true  "Session ID (uuid)"
// @Param    idx  path  int     true  "Segment index"
// @Success  200 {object} domain.AvailabilityResult
// @Failure  409 {object} ErrorResponse
// @Failure  429 {object} ErrorResponse
// @Failure  502 {object} ErrorResponse
// @Router   /sessions/{id}/segments/{idx}/availability [post]
func handleCheckAvailability(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseSessionID(c)
		if !ok {
			return
		}
		idx, ok := parseIntParam(c, "idx")
		if !ok {
			return
		}
		res, err := svcs.Sessions.CheckAvailability(c.Request.Context(), id, idx)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

// @Summary  Last availability snapshot
// @Param    id   path  string  true  "Session ID (uuid)"
// @Param    idx  path  int     true  "Segment index"
// @Success  200 {object} domain.AvailabilitySnapshot
// @Router   /sessions/{id}/segments/{idx}/availability [get]
func handleGetAvailability(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, idx, ok := lookupSegment(c, svcs)
		if !ok {
			return
		}
		snap, err := s.Availability(idx)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, snap)
	}
}

// @Summary  Replace baggage selections
// @Param    id   path  string  true  "Session ID (uuid)"
// @Param    req  body  SetBaggageRequest true "payload"
// @Success  200 {object} domain.PriceBreakdown
// @Failure  400 {object} ErrorResponse
// @Router   /sessions/{id}/baggage [put]
func handleSetBaggage(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := lookupSession(c, svcs)
		if !ok {
			return
		}
		var req SetBaggageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		if err := s.SetBaggage(req.Items); err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, s.Price())
	}
}

// @Summary  Apply a voucher
// @Param    id   path  string  true  "Session ID (uuid)"
// @Param    req  body  ApplyVoucherRequest true "payload"
// @Success  200 {object} domain.PriceBreakdown
// @Failure  400 {object} ErrorResponse
// @Router   /sessions/{id}/voucher [put]
func handleApplyVoucher(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := lookupSession(c, svcs)
		if !ok {
			return
		}
		var req ApplyVoucherRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		if err := s.ApplyVoucher(req.voucher()); err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, s.Price())
	}
}

// @Summary  Remove the voucher
// @Param    id   path  string  true  "Session ID (uuid)"
// @Success  200 {object} domain.PriceBreakdown
// @Router   /sessions/{id}/voucher [delete]
func handleRemoveVoucher(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := lookupSession(c, svcs)
		if !ok {
			return
		}
		if err := s.RemoveVoucher(); err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, s.Price())
	}
}

// @Summary  Price breakdown
// @Param    id   path  string  true  "Session ID (uuid)"
// @Success  200 {object} domain.PriceBreakdown
// @Router   /sessions/{id}/price [get]
func handleGetPrice(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := lookupSession(c, svcs)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, s.Price())
	}
}

// @Summary  List notices
// @Param    id   path  string  true  "Session ID (uuid)"
// @Success  200 {object} NoticesResponse
// @Router   /sessions/{id}/notices [get]
func handleListNotices(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := lookupSession(c, svcs)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, NoticesResponse{Notices: s.Notices()})
	}
}

// @Summary  Dismiss a notice
// @Param    id   path  string  true  "Session ID (uuid)"
// @Param    key  path  string  true  "Notice key"
// @Success  204
// @Failure  404 {object} ErrorResponse
// @Router   /sessions/{id}/notices/{key} [delete]
func handleDismissNotice(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := lookupSession(c, svcs)
		if !ok {
			return
		}
		if !s.DismissNotice(c.Param("key")) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "notice not found"})
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// @Summary  Submit the booking
// @Param    id               path    string  true   "Session ID (uuid)"
// @Param    Idempotency-Key  header  string  false  "Idempotency key"
// @Success  201 {object} SubmitResponse
// @Failure  409 {object} SeatsUnavailableResponse
// @Failure  422 {object} ErrorResponse
// @Failure  504 {object} ErrorResponse
// @Router   /sessions/{id}/submit [post]
func handleSubmit(
	svcs *service.Services,
	idem *redisrepo.IdempotencyStore,
	logger *slog.Logger,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseSessionID(c)
		if !ok {
			return
		}
		ctx := c.Request.Context()

		idemKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
		var idemStorageKey string
		if idem != nil && idemKey != "" {
			idemStorageKey = redisrepo.KeyIdemSubmit(id.String(), idemKey)

			if payload, ok, _ := idem.GetResult(ctx, idemStorageKey); ok {
				c.Header("Idempotency-Key", idemKey)
				c.Data(
					http.StatusCreated,
					"application/json; charset=utf-8",
					[]byte(payload),
				)
				return
			}

			locked, err := idem.AcquireLock(ctx, idemStorageKey, submitLockTTL)
			if err != nil {
				respondErr(c, err)
				return
			}
			if !locked {
				c.Header("Retry-After", "1")
				c.JSON(
					http.StatusConflict,
					ErrorResponse{Error: "idempotency key in progress"},
				)
				return
			}
		}

		sub, err := svcs.Sessions.Submit(ctx, id, idemKey, c.GetString("request_id"))
		if err != nil {
			if idemStorageKey != "" {
				if rerr := idem.Release(ctx, idemStorageKey); rerr != nil {
					logger.Warn("failed to release idempotency lock",
						"session_id", id,
						"error", rerr,
					)
				}
			}
			respondErr(c, err)
			return
		}

		resp := SubmitResponse{Submission: sub}

		if idemStorageKey != "" {
			b, _ := json.Marshal(resp)
			_ = idem.SaveResult(ctx, idemStorageKey, string(b))
			c.Header("Idempotency-Key", idemKey)
		}

		c.JSON(http.StatusCreated, resp)
	}
}

// @Summary  Submission history
// @Param    id  path  string  true  "Session ID (uuid)"
// @Success  200 {object} SubmissionsResponse
// @Router   /sessions/{id}/submissions [get]
func handleListSubmissions(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseSessionID(c)
		if !ok {
			return
		}
		subs, err := svcs.Submissions.ListBySession(c.Request.Context(), id)
		if err != nil {
			respondErr(c, err)
			return
		}
		if subs == nil {
			subs = []domain.Submission{}
		}
		c.JSON(http.StatusOK, SubmissionsResponse{Submissions: subs})
	}
}

// --- Helpers ---

func parseSessionID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid session id")
		return uuid.Nil, false
	}
	return id, true
}

func parseIntParam(c *gin.Context, name string) (int, bool) {
	v, err := strconv.Atoi(c.Param(name))
	if err != nil {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return v, true
}

func lookupSession(c *gin.Context, svcs *service.Services) (*session.Session, bool) {
	id, ok := parseSessionID(c)
	if !ok {
		return nil, false
	}
	s, err := svcs.Sessions.Get(id)
	if err != nil {
		respondErr(c, err)
		return nil, false
	}
	return s, true
}

func lookupSegment(c *gin.Context, svcs *service.Services) (*session.Session, int, bool) {
	s, ok := lookupSession(c, svcs)
	if !ok {
		return nil, 0, false
	}
	idx, ok := parseIntParam(c, "idx")
	if !ok {
		return nil, 0, false
	}
	return s, idx, true
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}
