package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb/geojson"
)

type RoomAPI interface {
	GetAllRooms(ctx context.Context) (*geojson.FeatureCollection, error)
	GetRoomByID(ctx context.Context, id uuid.UUID) (ChangingRoom, error)
	CreateRoom(ctx context.Context, room CreateChangingRoom) (*ChangingRoom, error)
}

type ReviewAPI interface {
	GetReviews(ctx context.Context, roomID uuid.UUID) ([]Review, error)
	CreateReview(ctx context.Context, review CreateReview) (Review, error)
}

// Cache stores JSON-encodable values with a TTL. Implementations must be safe
// for concurrent use; Del must be visible to every subsequent Get.
type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

// Geocoder turns a coordinate into a human-readable place description.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, loc Location) (string, error)
}
