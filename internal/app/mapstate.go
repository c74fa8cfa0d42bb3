package app

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"stellerom/internal/domain"
)

type Mode int

const (
	Browsing Mode = iota
	PlacingLocation
	ConfirmingPlacement
)

func (m Mode) String() string {
	switch m {
	case PlacingLocation:
		return "placing_location"
	case ConfirmingPlacement:
		return "confirming_placement"
	default:
		return "browsing"
	}
}

// View is the visible map area.
type View struct {
	Center domain.Location
	Zoom   int
}

// DefaultView shows the whole of Norway.
var DefaultView = View{Center: domain.Location{Lat: 64.68, Lng: 9.39}, Zoom: 4}

// LocatedZoom is used once the user's own position is known.
const LocatedZoom = 15

// MapState is the per-session state of the map page. Every transition returns
// a new value; the receiver is never modified.
type MapState struct {
	Mode      Mode
	Candidate *domain.Location
	Name      string
	View      View
	// LocationToken identifies the outstanding geolocation request, if any.
	LocationToken string
}

func NewMapState() MapState { return MapState{View: DefaultView} }

func (s MapState) placing() bool { return s.Mode == PlacingLocation || s.Mode == ConfirmingPlacement }

func (s MapState) StartPlacement() MapState {
	if s.Mode != Browsing {
		return s
	}
	s.Mode = PlacingLocation
	s.Candidate = nil
	s.Name = ""
	return s
}

// Click places the candidate, replacing any earlier one, and re-centers the
// map on it at the current zoom. Ignored while browsing.
func (s MapState) Click(loc domain.Location) MapState {
	if !s.placing() {
		return s
	}
	c := loc
	s.Candidate = &c
	s.Mode = ConfirmingPlacement
	s.View.Center = loc
	return s
}

func (s MapState) SetName(name string) MapState {
	if !s.placing() {
		return s
	}
	s.Name = name
	return s
}

func (s MapState) Cancel() MapState {
	if !s.placing() {
		return s
	}
	s.Mode = Browsing
	s.Candidate = nil
	s.Name = ""
	return s
}

func (s MapState) CanSubmit() bool {
	return s.Mode == ConfirmingPlacement && s.Candidate != nil && strings.TrimSpace(s.Name) != ""
}

// RoomCreator is the part of the Room API a placement submit needs.
type RoomCreator interface {
	CreateRoom(ctx context.Context, room domain.CreateChangingRoom) (*domain.ChangingRoom, error)
}

// Submit creates the room. The creator is not called unless CanSubmit; on
// failure the returned state equals the receiver.
func (s MapState) Submit(ctx context.Context, rooms RoomCreator) (MapState, *domain.ChangingRoom, error) {
	if !s.CanSubmit() {
		return s, nil, domain.ErrSubmitNotAllowed
	}
	room, err := rooms.CreateRoom(ctx, domain.CreateChangingRoom{
		Name:     strings.TrimSpace(s.Name),
		Location: *s.Candidate,
	})
	if err != nil {
		return s, nil, err
	}
	s.Mode = Browsing
	s.Candidate = nil
	s.Name = ""
	return s, room, nil
}

// NewLocationToken returns a token for one "go to my location" action.
func NewLocationToken() string { return uuid.NewString() }

// RequestLocation supersedes any outstanding geolocation request.
func (s MapState) RequestLocation(token string) MapState {
	s.LocationToken = token
	return s
}

// ResolveLocation applies the result of the request identified by token. A
// nil loc means the position was unavailable or denied. Results for any other
// token are dropped.
func (s MapState) ResolveLocation(token string, loc *domain.Location) MapState {
	if token == "" || token != s.LocationToken {
		return s
	}
	s.LocationToken = ""
	if loc == nil {
		s.View = DefaultView
		return s
	}
	s.View = View{Center: *loc, Zoom: LocatedZoom}
	return s
}
