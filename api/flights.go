package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/Domenick1991/ftms/internal/domain"
	"github.com/Domenick1991/ftms/internal/repository"
	"github.com/Domenick1991/ftms/internal/service/flights"
	"github.com/gin-gonic/gin"
)

type FlightHandler struct {
	service flights.FlightUseCase
	opener  repository.Opener
}

type createFlightRequest struct {
	FlightID         string    `json:"flight_id" binding:"required,max=32"`
	Departure        string    `json:"departure" binding:"required,max=64"`
	Destination      string    `json:"destination" binding:"required,max=64"`
	DepartureAirport string    `json:"departure_airport" binding:"max=64"`
	ArrivalAirport   string    `json:"arrival_airport" binding:"max=64"`
	DepartTime       time.Time `json:"depart_time" binding:"required"`
	ArriveTime       time.Time `json:"arrive_time" binding:"required"`
	Price            float64   `json:"price" binding:"gte=0"`
	RestSeats        int       `json:"rest_seats" binding:"gte=0"`
}

type flightResponse struct {
	FlightID         string  `json:"flight_id"`
	Departure        string  `json:"departure"`
	Destination      string  `json:"destination"`
	DepartureAirport string  `json:"departure_airport"`
	ArrivalAirport   string  `json:"arrival_airport"`
	DepartTime       string  `json:"depart_time"`
	ArriveTime       string  `json:"arrive_time"`
	Price            float64 `json:"price"`
	RestSeats        int     `json:"rest_seats"`
}

func newFlightResponse(f domain.Flight) flightResponse {
	return flightResponse{
		FlightID:         f.FlightID,
		Departure:        f.Departure,
		Destination:      f.Destination,
		DepartureAirport: f.DepartureAirport,
		ArrivalAirport:   f.ArrivalAirport,
		DepartTime:       f.DepartTime.Format(time.RFC3339),
		ArriveTime:       f.ArriveTime.Format(time.RFC3339),
		Price:            f.Price,
		RestSeats:        f.RestSeats,
	}
}

func NewFlightHandler(service flights.FlightUseCase, opener repository.Opener) *FlightHandler {
	return &FlightHandler{service: service, opener: opener}
}

func (h *FlightHandler) Register(router *gin.RouterGroup) {
	router.GET("", h.list)
	router.POST("", h.create)
	router.GET("/:id/seats", h.seats)
}

func (h *FlightHandler) list(c *gin.Context) {
	limit := 0
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}

	store, ok := openHandle(c, h.opener)
	if !ok {
		return
	}
	defer store.Close()

	list, err := h.service.List(c.Request.Context(), store, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	resp := make([]flightResponse, 0, len(list))
	for _, f := range list {
		resp = append(resp, newFlightResponse(f))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *FlightHandler) create(c *gin.Context) {
	var req createFlightRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	store, ok := openHandle(c, h.opener)
	if !ok {
		return
	}
	defer store.Close()

	flight := domain.Flight(req)
	if err := h.service.Add(c.Request.Context(), store, flight); err != nil {
		switch {
		case errors.Is(err, flights.ErrFlightExists):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case errors.Is(err, flights.ErrFlightInvalid):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}
	c.JSON(http.StatusCreated, newFlightResponse(flight))
}

func (h *FlightHandler) seats(c *gin.Context) {
	store, ok := openHandle(c, h.opener)
	if !ok {
		return
	}
	defer store.Close()

	seats, err := h.service.OccupiedSeats(c.Request.Context(), store, c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"flight_id": c.Param("id"), "occupied": seats})
}
