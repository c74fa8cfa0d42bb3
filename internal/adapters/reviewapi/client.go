// Package reviewapi is the client for the Review API. Reviews are never cached.
package reviewapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"stellerom/internal/adapters/upstream"
	"stellerom/internal/domain"
)

const Service = "review-api"

type Client struct {
	http *upstream.Client
}

func New(hc *upstream.Client) *Client { return &Client{http: hc} }

// GetReviews returns the reviews of one room in the order the API sent them.
func (c *Client) GetReviews(ctx context.Context, roomID uuid.UUID) ([]domain.Review, error) {
	q := url.Values{"roomId": []string{roomID.String()}}
	resp, err := c.http.Do(ctx, http.MethodGet, "/reviews", q, nil)
	if err != nil {
		return nil, fmt.Errorf("get reviews for room %s: %w", roomID, err)
	}

	var out []domain.Review
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return nil, &domain.MalformedResponseError{Service: Service, Endpoint: "/reviews", Err: err}
	}
	for i := range out {
		if err := domain.Validate(out[i]); err != nil {
			return nil, &domain.MalformedResponseError{Service: Service, Endpoint: "/reviews", Err: fmt.Errorf("review %d: %w", i, err)}
		}
	}
	if out == nil {
		out = []domain.Review{}
	}
	return out, nil
}

// CreateReview validates the review locally, posts it and returns the stored
// review including the server-assigned timestamp.
func (c *Client) CreateReview(ctx context.Context, in domain.CreateReview) (domain.Review, error) {
	in = in.Normalize()
	if err := domain.Validate(in); err != nil {
		return domain.Review{}, err
	}

	resp, err := c.http.Do(ctx, http.MethodPost, "/reviews", nil, in)
	if err != nil {
		return domain.Review{}, fmt.Errorf("create review: %w", err)
	}

	var out domain.Review
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return domain.Review{}, &domain.MalformedResponseError{Service: Service, Endpoint: "/reviews", Err: err}
	}
	if err := domain.Validate(out); err != nil {
		return domain.Review{}, &domain.MalformedResponseError{Service: Service, Endpoint: "/reviews", Err: err}
	}
	log.Info().Str("room_id", out.RoomID.String()).Msg("review created")
	return out, nil
}
