package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Review struct {
	RoomID             uuid.UUID  `json:"roomId" validate:"required"`
	AvailabilityRating StarRating `json:"availabilityRating" validate:"min=1,max=5"`
	SafetyRating       StarRating `json:"safetyRating" validate:"min=1,max=5"`
	CleanlinessRating  StarRating `json:"cleanlinessRating" validate:"min=1,max=5"`
	Review             *string    `json:"review"`
	ImageURL           *string    `json:"imageUrl"`
	ReviewedAt         time.Time  `json:"reviewedAt" validate:"required"`
	ReviewedBy         *string    `json:"reviewedBy"`
}

// CreateReview is a Review without the server-assigned timestamp.
type CreateReview struct {
	RoomID             uuid.UUID  `json:"roomId" validate:"required"`
	AvailabilityRating StarRating `json:"availabilityRating" validate:"min=1,max=5"`
	SafetyRating       StarRating `json:"safetyRating" validate:"min=1,max=5"`
	CleanlinessRating  StarRating `json:"cleanlinessRating" validate:"min=1,max=5"`
	Review             *string    `json:"review,omitempty"`
	ImageURL           *string    `json:"imageUrl,omitempty" validate:"omitempty,url"`
	ReviewedBy         *string    `json:"reviewedBy,omitempty" validate:"omitempty,max=100"`
}

// Normalize drops blank optional strings so they are sent as absent.
func (c CreateReview) Normalize() CreateReview {
	c.Review = nonBlank(c.Review)
	c.ImageURL = nonBlank(c.ImageURL)
	c.ReviewedBy = nonBlank(c.ReviewedBy)
	return c
}

func nonBlank(p *string) *string {
	if p == nil {
		return nil
	}
	s := strings.TrimSpace(*p)
	if s == "" {
		return nil
	}
	return &s
}
