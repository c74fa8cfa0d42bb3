package app

import (
	"context"
	"time"
	_ "time/tzdata"

	"github.com/google/uuid"
	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"stellerom/internal/domain"
)

func osloTZ() *time.Location {
	loc, err := time.LoadLocation("Europe/Oslo")
	if err != nil {
		log.Error().Err(err).Msg("load Europe/Oslo, falling back to UTC")
		return time.UTC
	}
	return loc
}

type MapPage struct {
	State     MapState
	Rooms     *geojson.FeatureCollection
	CanSubmit bool
}

type RoomDetails struct {
	Room domain.ChangingRoom
	// Reviews in API order with ReviewedAt in Europe/Oslo.
	Reviews []domain.Review
}

// RoomsGeoJSON returns the room collection with popup properties added.
func (s *Service) RoomsGeoJSON(ctx context.Context) (*geojson.FeatureCollection, error) {
	start := time.Now()
	log.Debug().Msg("loading rooms")
	fc, err := s.rooms.GetAllRooms(ctx)
	if err != nil {
		return nil, err
	}
	out := DecorateRooms(fc)
	log.Debug().Int("rooms", len(out.Features)).Dur("duration", time.Since(start)).Msg("rooms loaded")
	return out, nil
}

func (s *Service) MapPage(ctx context.Context, sessionID string) (MapPage, error) {
	rooms, err := s.RoomsGeoJSON(ctx)
	if err != nil {
		return MapPage{}, err
	}
	st := s.sessions.Get(sessionID)
	return MapPage{State: st, Rooms: rooms, CanSubmit: st.CanSubmit()}, nil
}

// RoomDetails fetches the room and its reviews concurrently.
func (s *Service) RoomDetails(ctx context.Context, id uuid.UUID) (RoomDetails, error) {
	var (
		room    domain.ChangingRoom
		reviews []domain.Review
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r, err := s.rooms.GetRoomByID(gctx, id)
		room = r
		return err
	})
	g.Go(func() error {
		rs, err := s.reviews.GetReviews(gctx, id)
		reviews = rs
		return err
	})
	if err := g.Wait(); err != nil {
		return RoomDetails{}, err
	}

	out := make([]domain.Review, len(reviews))
	for i, r := range reviews {
		r.ReviewedAt = r.ReviewedAt.In(s.tz)
		out[i] = r
	}
	return RoomDetails{Room: room, Reviews: out}, nil
}
