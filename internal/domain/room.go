package domain

import "github.com/google/uuid"

type ChangingRoom struct {
	ID         uuid.UUID `json:"id" validate:"required"`
	Name       string    `json:"name"`
	Location   Location  `json:"location"`
	Ratings    *Ratings  `json:"ratings" validate:"omitempty"`
	ExternalID *string   `json:"externalId"`
}

// CreateChangingRoom is the body of POST /rooms.
type CreateChangingRoom struct {
	Name     string   `json:"name" validate:"required,notblank,max=200"`
	Location Location `json:"location"`
}
