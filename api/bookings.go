package api

import (
	"errors"
	"net/http"

	"github.com/Domenick1991/ftms/internal/repository"
	"github.com/Domenick1991/ftms/internal/service/booking"
	"github.com/gin-gonic/gin"
)

// TicketHandler lets operators book, move and cancel tickets on behalf of
// a customer. It goes through the same engine as client requests.
type TicketHandler struct {
	service booking.BookingUseCase
	opener  repository.Opener
}

type bookTicketRequest struct {
	Username   string `json:"username" binding:"required,max=64"`
	FlightID   string `json:"flight_id" binding:"required,max=32"`
	SeatNumber string `json:"seat_number" binding:"omitempty,max=3"`
}

type changeTicketRequest struct {
	NewFlightID   string `json:"new_flight_id" binding:"required,max=32"`
	NewSeatNumber string `json:"new_seat_number" binding:"omitempty,max=3"`
}

type ticketResponse struct {
	OrderID string `json:"order_id"`
}

func NewTicketHandler(service booking.BookingUseCase, opener repository.Opener) *TicketHandler {
	return &TicketHandler{service: service, opener: opener}
}

func (h *TicketHandler) Register(router *gin.RouterGroup) {
	router.POST("", h.book)
	router.PUT("/:order_id", h.change)
	router.DELETE("/:order_id", h.cancel)
}

func (h *TicketHandler) book(c *gin.Context) {
	var req bookTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	store, ok := openHandle(c, h.opener)
	if !ok {
		return
	}
	defer store.Close()

	orderID, err := h.service.BookTicket(c.Request.Context(), store, booking.BookTicketInput{
		Username:   req.Username,
		FlightID:   req.FlightID,
		SeatNumber: req.SeatNumber,
	})
	if err != nil {
		c.JSON(bookingErrorStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, ticketResponse{OrderID: orderID})
}

func (h *TicketHandler) change(c *gin.Context) {
	var req changeTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	store, ok := openHandle(c, h.opener)
	if !ok {
		return
	}
	defer store.Close()

	orderID, err := h.service.ChangeTicket(c.Request.Context(), store, booking.ChangeTicketInput{
		OrderID:       c.Param("order_id"),
		NewFlightID:   req.NewFlightID,
		NewSeatNumber: req.NewSeatNumber,
	})
	if err != nil {
		c.JSON(bookingErrorStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, ticketResponse{OrderID: orderID})
}

func (h *TicketHandler) cancel(c *gin.Context) {
	store, ok := openHandle(c, h.opener)
	if !ok {
		return
	}
	defer store.Close()

	orderID := c.Param("order_id")
	if err := h.service.CancelTicket(c.Request.Context(), store, orderID); err != nil {
		c.JSON(bookingErrorStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, ticketResponse{OrderID: orderID})
}

func bookingErrorStatus(err error) int {
	switch {
	case errors.Is(err, booking.ErrFlightNotFound),
		errors.Is(err, booking.ErrOrderNotFound),
		errors.Is(err, booking.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, booking.ErrNoSeatsLeft), errors.Is(err, booking.ErrSeatTaken):
		return http.StatusConflict
	case errors.Is(err, booking.ErrRouteMismatch), errors.Is(err, booking.ErrInvalidSeat):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
