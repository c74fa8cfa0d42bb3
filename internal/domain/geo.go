package domain

// Location is a WGS84 coordinate in degrees.
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// StarRating is a rating in the closed range [1,5].
type StarRating int

const (
	MinStarRating StarRating = 1
	MaxStarRating StarRating = 5
)

func (s StarRating) Valid() bool { return s >= MinStarRating && s <= MaxStarRating }

// Ratings is the aggregate shown for a room. Nil when the room has no reviews.
type Ratings struct {
	Availability *StarRating `json:"availability" validate:"omitempty,min=1,max=5"`
	Safety       *StarRating `json:"safety" validate:"omitempty,min=1,max=5"`
	Cleanliness  *StarRating `json:"cleanliness" validate:"omitempty,min=1,max=5"`
}
