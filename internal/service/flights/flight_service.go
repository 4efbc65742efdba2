package flights

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Domenick1991/ftms/internal/domain"
	"github.com/Domenick1991/ftms/internal/repository"
)

var (
	ErrFlightExists  = errors.New("flight already exists")
	ErrFlightInvalid = errors.New("invalid flight")
)

type FlightUseCase interface {
	Search(ctx context.Context, h repository.Handle, q domain.FlightQuery) ([]domain.Flight, error)
	Cities(ctx context.Context, h repository.Handle) ([]string, error)
	OccupiedSeats(ctx context.Context, h repository.Handle, flightID string) ([]string, error)
	List(ctx context.Context, h repository.Handle, limit int) ([]domain.Flight, error)
	Add(ctx context.Context, h repository.Handle, flight domain.Flight) error
	WarmCache(ctx context.Context, h repository.Handle) error
}

// FlightCache stores search results under a version that is bumped on
// every inventory change.
type FlightCache interface {
	Version(ctx context.Context) (int64, error)
	InvalidateFlights(ctx context.Context) error
	GetFlights(ctx context.Context, version int64, q domain.FlightQuery) ([]domain.Flight, error)
	SetFlights(ctx context.Context, version int64, q domain.FlightQuery, flights []domain.Flight) error
	GetCities(ctx context.Context, version int64) ([]string, error)
	SetCities(ctx context.Context, version int64, cities []string) error
}

type FlightService struct {
	cache  FlightCache
	logger *slog.Logger
}

// NewFlightService accepts a nil cache; every call then goes to the store.
func NewFlightService(cache FlightCache, logger *slog.Logger) *FlightService {
	if logger == nil {
		logger = slog.Default()
	}
	return &FlightService{cache: cache, logger: logger}
}

// ParseQuery builds a search filter. date is YYYY-MM-DD or empty.
func ParseQuery(departure, destination, date string) (domain.FlightQuery, error) {
	q := domain.FlightQuery{Departure: departure, Destination: destination}
	if date == "" {
		return q, nil
	}
	d, err := time.ParseInLocation(time.DateOnly, date, time.Local)
	if err != nil {
		return domain.FlightQuery{}, fmt.Errorf("parse date %q: %w", date, err)
	}
	q.Date = d
	return q, nil
}

func (s *FlightService) Search(ctx context.Context, h repository.Handle, q domain.FlightQuery) ([]domain.Flight, error) {
	version, cached := s.cacheVersion(ctx)
	if cached {
		if flights, err := s.cache.GetFlights(ctx, version, q); err == nil && flights != nil {
			return flights, nil
		}
	}

	flights, err := h.SearchFlights(ctx, q)
	if err != nil {
		return nil, err
	}
	if cached {
		if err := s.cache.SetFlights(ctx, version, q, flights); err != nil {
			s.logger.Debug("flights cache write failed", "error", err)
		}
	}
	return flights, nil
}

func (s *FlightService) Cities(ctx context.Context, h repository.Handle) ([]string, error) {
	version, cached := s.cacheVersion(ctx)
	if cached {
		if cities, err := s.cache.GetCities(ctx, version); err == nil && cities != nil {
			return cities, nil
		}
	}

	cities, err := h.Cities(ctx)
	if err != nil {
		return nil, err
	}
	if cached {
		if err := s.cache.SetCities(ctx, version, cities); err != nil {
			s.logger.Debug("cities cache write failed", "error", err)
		}
	}
	return cities, nil
}

func (s *FlightService) OccupiedSeats(ctx context.Context, h repository.Handle, flightID string) ([]string, error) {
	return h.OccupiedSeats(ctx, flightID)
}

func (s *FlightService) List(ctx context.Context, h repository.Handle, limit int) ([]domain.Flight, error) {
	if limit <= 0 {
		limit = 100
	}
	return h.ListFlights(ctx, limit)
}

func (s *FlightService) Add(ctx context.Context, h repository.Handle, flight domain.Flight) error {
	if flight.RestSeats < 0 || flight.RestSeats > domain.SeatCount {
		return fmt.Errorf("%w: rest_seats must be between 0 and %d", ErrFlightInvalid, domain.SeatCount)
	}
	if !flight.ArriveTime.After(flight.DepartTime) {
		return fmt.Errorf("%w: arrive_time must be after depart_time", ErrFlightInvalid)
	}

	if err := h.AddFlight(ctx, flight); err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return ErrFlightExists
		}
		return err
	}
	if s.cache != nil {
		if err := s.cache.InvalidateFlights(ctx); err != nil {
			s.logger.Warn("failed to invalidate flights cache", "error", err)
		}
	}
	return nil
}

// WarmCache preloads the city list and the unfiltered search.
func (s *FlightService) WarmCache(ctx context.Context, h repository.Handle) error {
	if s.cache == nil {
		return nil
	}
	if _, err := s.Cities(ctx, h); err != nil {
		return err
	}
	_, err := s.Search(ctx, h, domain.FlightQuery{})
	return err
}

func (s *FlightService) cacheVersion(ctx context.Context) (int64, bool) {
	if s.cache == nil {
		return 0, false
	}
	version, err := s.cache.Version(ctx)
	if err != nil {
		s.logger.Debug("flights cache unavailable", "error", err)
		return 0, false
	}
	return version, true
}

var _ FlightUseCase = (*FlightService)(nil)
