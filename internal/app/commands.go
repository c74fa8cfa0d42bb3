package app

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"stellerom/internal/adapters/observability"
	"stellerom/internal/domain"
)

// Service runs the map and room page use cases for one process.
type Service struct {
	rooms    domain.RoomAPI
	reviews  domain.ReviewAPI
	geocoder domain.Geocoder // optional
	sessions *SessionStore
	tz       *time.Location
}

func NewService(rooms domain.RoomAPI, reviews domain.ReviewAPI, geocoder domain.Geocoder, sessions *SessionStore) *Service {
	return &Service{
		rooms:    rooms,
		reviews:  reviews,
		geocoder: geocoder,
		sessions: sessions,
		tz:       osloTZ(),
	}
}

// update applies fn to the session and records the mode transition.
func (s *Service) update(sessionID string, fn func(MapState) (MapState, error)) (MapState, error) {
	var from Mode
	next, err := s.sessions.Update(sessionID, func(cur MapState) (MapState, error) {
		from = cur.Mode
		return fn(cur)
	})
	observability.ObserveTransition(from.String(), next.Mode.String())
	return next, err
}

func pure(f func(MapState) MapState) func(MapState) (MapState, error) {
	return func(s MapState) (MapState, error) { return f(s), nil }
}

func (s *Service) StartPlacement(sessionID string) MapState {
	st, _ := s.update(sessionID, pure(MapState.StartPlacement))
	return st
}

// PlaceCandidate sets or replaces the candidate location. When the name is
// still empty and a geocoder is configured, a suggested name is filled in.
func (s *Service) PlaceCandidate(ctx context.Context, sessionID string, loc domain.Location) MapState {
	st, _ := s.update(sessionID, pure(func(m MapState) MapState { return m.Click(loc) }))
	if s.geocoder == nil || st.Mode != ConfirmingPlacement || strings.TrimSpace(st.Name) != "" {
		return st
	}

	name, err := s.geocoder.ReverseGeocode(ctx, loc)
	if err != nil {
		log.Warn().Err(err).Float64("lat", loc.Lat).Float64("lng", loc.Lng).Msg("reverse geocode failed")
		return st
	}
	if name == "" {
		return st
	}
	st, _ = s.update(sessionID, pure(func(m MapState) MapState {
		// the user may have moved on while we waited
		if m.Candidate == nil || *m.Candidate != loc || strings.TrimSpace(m.Name) != "" {
			return m
		}
		return m.SetName(name)
	}))
	return st
}

func (s *Service) SetName(sessionID, name string) MapState {
	st, _ := s.update(sessionID, pure(func(m MapState) MapState { return m.SetName(name) }))
	return st
}

func (s *Service) CancelPlacement(sessionID string) MapState {
	st, _ := s.update(sessionID, pure(MapState.Cancel))
	return st
}

// SubmitPlacement stores name and creates the room if the placement is complete.
func (s *Service) SubmitPlacement(ctx context.Context, sessionID, name string) (MapState, *domain.ChangingRoom, error) {
	var room *domain.ChangingRoom
	st, err := s.update(sessionID, func(m MapState) (MapState, error) {
		m = m.SetName(name)
		next, created, err := m.Submit(ctx, s.rooms)
		room = created
		return next, err
	})
	if err != nil {
		return st, nil, err
	}
	return st, room, nil
}

// RequestLocation starts a geolocation request and returns its token.
func (s *Service) RequestLocation(sessionID string) (MapState, string) {
	token := NewLocationToken()
	st, _ := s.update(sessionID, pure(func(m MapState) MapState { return m.RequestLocation(token) }))
	return st, token
}

// ResolveLocation applies a geolocation result; loc is nil when it failed.
func (s *Service) ResolveLocation(sessionID, token string, loc *domain.Location) MapState {
	st, _ := s.update(sessionID, pure(func(m MapState) MapState { return m.ResolveLocation(token, loc) }))
	return st
}

// CreateReview does not touch the room cache; map ratings catch up on the
// next refresh of the collection.
func (s *Service) CreateReview(ctx context.Context, in domain.CreateReview) (domain.Review, error) {
	rv, err := s.reviews.CreateReview(ctx, in)
	if err != nil {
		return domain.Review{}, err
	}
	rv.ReviewedAt = rv.ReviewedAt.In(s.tz)
	return rv, nil
}
