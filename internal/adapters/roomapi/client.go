// Package roomapi is the client for the Room API. It owns the cached room
// collection: reads go through the injected cache, a successful create
// invalidates it.
package roomapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog/log"

	"stellerom/internal/adapters/upstream"
	"stellerom/internal/domain"
)

const (
	Service    = "room-api"
	DefaultTTL = time.Hour
)

type Client struct {
	http  *upstream.Client
	cache domain.Cache
	ttl   time.Duration
}

func New(hc *upstream.Client, cache domain.Cache, ttl time.Duration) *Client {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Client{http: hc, cache: cache, ttl: ttl}
}

// CacheKey identifies the room collection of one endpoint. It depends only on
// the base URL so clients pointed at the same endpoint share the entry.
func CacheKey(base string) string { return "rooms:v2:" + upstream.NormalizeBase(base) }

func (c *Client) cacheKey() string { return CacheKey(c.http.Base()) }

// The collection is stored under <CacheKey>:<generation>. Invalidation writes a
// fresh generation, so a fetch that started before it lands under a key no
// reader looks at again.
func (c *Client) genKey() string { return c.cacheKey() + ":gen" }

// generation returns the current cache generation. ok is false when it could
// not be read; the caller then bypasses the cache.
func (c *Client) generation(ctx context.Context) (gen string, ok bool) {
	found, err := c.cache.Get(ctx, c.genKey(), &gen)
	if err != nil {
		log.Warn().Err(err).Str("key", c.genKey()).Msg("room cache generation read failed, bypassing cache")
		return "", false
	}
	if !found || gen == "" {
		return "0", true
	}
	return gen, true
}

func (c *Client) GetAllRooms(ctx context.Context) (*geojson.FeatureCollection, error) {
	var key string
	if c.cache != nil {
		if gen, ok := c.generation(ctx); ok {
			key = c.cacheKey() + ":" + gen
		}
	}
	if key != "" {
		fc := geojson.NewFeatureCollection()
		ok, err := c.cache.Get(ctx, key, fc)
		if err != nil {
			log.Warn().Err(err).Str("key", key).Msg("room cache read failed, fetching")
		}
		if ok && err == nil {
			return fc, nil
		}
	}

	resp, err := c.http.Do(ctx, http.MethodGet, "/rooms-v2", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("get all rooms: %w", err)
	}
	fc, err := parseRoomCollection(resp.Body)
	if err != nil {
		return nil, &domain.MalformedResponseError{Service: Service, Endpoint: "/rooms-v2", Err: err}
	}

	if key != "" {
		if err := c.cache.Set(ctx, key, fc, c.ttl); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("room cache write failed")
		}
	}
	return fc, nil
}

func (c *Client) GetRoomByID(ctx context.Context, id uuid.UUID) (domain.ChangingRoom, error) {
	path := "/rooms/" + id.String()
	resp, err := c.http.Do(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return domain.ChangingRoom{}, fmt.Errorf("get room %s: %w", id, err)
	}
	room, err := decodeRoom(resp.Body)
	if err != nil {
		return domain.ChangingRoom{}, &domain.MalformedResponseError{Service: Service, Endpoint: "/rooms/{id}", Err: err}
	}
	return room, nil
}

// CreateRoom posts a new room. On any 2xx the room cache is invalidated
// before the response body is looked at. An empty body yields a nil room.
func (c *Client) CreateRoom(ctx context.Context, in domain.CreateChangingRoom) (*domain.ChangingRoom, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := domain.Validate(in); err != nil {
		return nil, err
	}

	resp, err := c.http.Do(ctx, http.MethodPost, "/rooms", nil, in)
	if err != nil {
		return nil, fmt.Errorf("create room: %w", err)
	}

	if err := c.InvalidateRooms(ctx); err != nil {
		log.Error().Err(err).Str("key", c.cacheKey()).Msg("room cache invalidation failed")
	}

	if len(strings.TrimSpace(string(resp.Body))) == 0 {
		return nil, nil
	}
	room, err := decodeRoom(resp.Body)
	if err != nil {
		return nil, &domain.MalformedResponseError{Service: Service, Endpoint: "/rooms", Err: err}
	}
	log.Info().Str("id", room.ID.String()).Str("name", room.Name).Msg("room created")
	return &room, nil
}

// InvalidateRooms moves the endpoint to a new cache generation. Entries of
// older generations are never read again and age out with their TTL.
func (c *Client) InvalidateRooms(ctx context.Context) error {
	if c.cache == nil {
		return nil
	}
	return c.cache.Set(ctx, c.genKey(), uuid.NewString(), 0)
}

func decodeRoom(b []byte) (domain.ChangingRoom, error) {
	var room domain.ChangingRoom
	if err := json.Unmarshal(b, &room); err != nil {
		return domain.ChangingRoom{}, err
	}
	if err := domain.Validate(room); err != nil {
		return domain.ChangingRoom{}, err
	}
	return room, nil
}

// parseRoomCollection accepts only a FeatureCollection of point features with
// unique, non-empty ids.
func parseRoomCollection(b []byte) (*geojson.FeatureCollection, error) {
	fc, err := geojson.UnmarshalFeatureCollection(b)
	if err != nil {
		return nil, err
	}
	if fc.Type != "FeatureCollection" {
		return nil, fmt.Errorf("unexpected type %q", fc.Type)
	}
	seen := make(map[string]struct{}, len(fc.Features))
	for i, f := range fc.Features {
		if f == nil {
			return nil, fmt.Errorf("feature %d: null", i)
		}
		id := FeatureID(f)
		if id == "" {
			return nil, fmt.Errorf("feature %d: missing id", i)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("feature %d: duplicate id %s", i, id)
		}
		seen[id] = struct{}{}
		if _, ok := f.Geometry.(orb.Point); !ok {
			return nil, fmt.Errorf("feature %s: geometry is not a point", id)
		}
		if f.Properties == nil {
			f.Properties = geojson.Properties{}
		}
	}
	return fc, nil
}

// FeatureID returns the feature id as a string ("" when absent).
func FeatureID(f *geojson.Feature) string {
	switch v := f.ID.(type) {
	case string:
		return v
	case nil:
		return ""
	case float64:
		return fmt.Sprintf("%.0f", v)
	default:
		return fmt.Sprint(v)
	}
}
