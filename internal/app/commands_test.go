package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"stellerom/internal/app"
	"stellerom/internal/domain"
)

type fakeGeocoder struct {
	name  string
	err   error
	calls int
}

func (g *fakeGeocoder) ReverseGeocode(ctx context.Context, loc domain.Location) (string, error) {
	g.calls++
	return g.name, g.err
}

func newSvc(rooms *fakeRooms, geo domain.Geocoder) *app.Service {
	return app.NewService(rooms, &fakeReviews{}, geo, app.NewSessionStore(time.Hour))
}

func TestSubmitPlacement_Success(t *testing.T) {
	rooms := &fakeRooms{}
	svc := newSvc(rooms, nil)
	ctx := context.Background()

	svc.StartPlacement("s")
	svc.PlaceCandidate(ctx, "s", domain.Location{Lat: 59.9, Lng: 10.7})
	st, room, err := svc.SubmitPlacement(ctx, "s", "Oslo S")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if room == nil || room.Name != "Oslo S" {
		t.Fatalf("room = %+v", room)
	}
	if st.Mode != app.Browsing || rooms.create.calls != 1 {
		t.Fatalf("state %+v, calls %d", st, rooms.create.calls)
	}
}

func TestSubmitPlacement_NotAllowed(t *testing.T) {
	rooms := &fakeRooms{}
	svc := newSvc(rooms, nil)

	svc.StartPlacement("s")
	_, _, err := svc.SubmitPlacement(context.Background(), "s", "Oslo S")
	if !errors.Is(err, domain.ErrSubmitNotAllowed) {
		t.Fatalf("err = %v", err)
	}
	if rooms.create.calls != 0 {
		t.Fatal("room created without a location")
	}
}

func TestSubmitPlacement_FailureKeepsPlacement(t *testing.T) {
	rooms := &fakeRooms{create: fakeCreator{err: &domain.UpstreamError{StatusCode: 500, Body: "internal error"}}}
	svc := newSvc(rooms, nil)
	ctx := context.Background()

	svc.StartPlacement("s")
	svc.PlaceCandidate(ctx, "s", domain.Location{Lat: 1, Lng: 2})
	st, _, err := svc.SubmitPlacement(ctx, "s", "x")
	if err == nil {
		t.Fatal("expected error")
	}
	if st.Mode != app.ConfirmingPlacement || st.Candidate == nil || st.Name != "x" {
		t.Fatalf("state = %+v", st)
	}
}

func TestPlaceCandidate_SuggestsName(t *testing.T) {
	geo := &fakeGeocoder{name: "Jernbanetorget 1"}
	svc := newSvc(&fakeRooms{}, geo)
	ctx := context.Background()

	svc.StartPlacement("s")
	st := svc.PlaceCandidate(ctx, "s", domain.Location{Lat: 59.91, Lng: 10.75})
	if st.Name != "Jernbanetorget 1" {
		t.Fatalf("name = %q", st.Name)
	}

	// a name typed by the user is never overwritten
	svc.SetName("s", "Mitt rom")
	st = svc.PlaceCandidate(ctx, "s", domain.Location{Lat: 60, Lng: 11})
	if st.Name != "Mitt rom" || geo.calls != 1 {
		t.Fatalf("name = %q calls = %d", st.Name, geo.calls)
	}
}

func TestPlaceCandidate_GeocoderErrorIgnored(t *testing.T) {
	svc := newSvc(&fakeRooms{}, &fakeGeocoder{err: errors.New("quota")})
	svc.StartPlacement("s")
	st := svc.PlaceCandidate(context.Background(), "s", domain.Location{Lat: 1, Lng: 2})
	if st.Mode != app.ConfirmingPlacement || st.Name != "" {
		t.Fatalf("state = %+v", st)
	}
}

func TestPlaceCandidate_BrowsingNoGeocode(t *testing.T) {
	geo := &fakeGeocoder{name: "x"}
	svc := newSvc(&fakeRooms{}, geo)
	st := svc.PlaceCandidate(context.Background(), "s", domain.Location{Lat: 1, Lng: 2})
	if st.Mode != app.Browsing || geo.calls != 0 {
		t.Fatalf("state = %+v calls = %d", st, geo.calls)
	}
}

func TestLocationRequestAndResolve(t *testing.T) {
	svc := newSvc(&fakeRooms{}, nil)
	oslo := domain.Location{Lat: 59.91, Lng: 10.75}

	_, stale := svc.RequestLocation("s")
	_, token := svc.RequestLocation("s")

	if st := svc.ResolveLocation("s", stale, &oslo); st.View != app.DefaultView {
		t.Fatalf("stale token applied: %+v", st.View)
	}
	if st := svc.ResolveLocation("s", token, &oslo); st.View.Zoom != app.LocatedZoom {
		t.Fatalf("view = %+v", st.View)
	}
}

func TestCancelPlacement(t *testing.T) {
	svc := newSvc(&fakeRooms{}, nil)
	svc.StartPlacement("s")
	svc.PlaceCandidate(context.Background(), "s", domain.Location{Lat: 1, Lng: 2})
	if st := svc.CancelPlacement("s"); st.Mode != app.Browsing || st.Candidate != nil {
		t.Fatalf("state = %+v", st)
	}
}

func TestCreateReview_LocalTime(t *testing.T) {
	reviews := &fakeReviews{}
	svc := app.NewService(&fakeRooms{}, reviews, nil, app.NewSessionStore(time.Hour))

	rv, err := svc.CreateReview(context.Background(), domain.CreateReview{
		RoomID: uuid.New(), AvailabilityRating: 5, SafetyRating: 3, CleanlinessRating: 4,
	})
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if len(reviews.created) != 1 {
		t.Fatal("review not sent")
	}
	if rv.ReviewedAt.Location().String() != "Europe/Oslo" || rv.ReviewedAt.Hour() != 12 {
		t.Fatalf("reviewedAt = %v", rv.ReviewedAt)
	}
}
