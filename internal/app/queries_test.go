package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"stellerom/internal/app"
	"stellerom/internal/domain"
)

// ---- fakes ----

type fakeRooms struct {
	mu       sync.Mutex
	fc       *geojson.FeatureCollection
	room     domain.ChangingRoom
	listErr  error
	getErr   error
	create   fakeCreator
	listHits int
}

func (f *fakeRooms) GetAllRooms(ctx context.Context) (*geojson.FeatureCollection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listHits++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.fc, nil
}

func (f *fakeRooms) GetRoomByID(ctx context.Context, id uuid.UUID) (domain.ChangingRoom, error) {
	if f.getErr != nil {
		return domain.ChangingRoom{}, f.getErr
	}
	return f.room, nil
}

func (f *fakeRooms) CreateRoom(ctx context.Context, in domain.CreateChangingRoom) (*domain.ChangingRoom, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.create.CreateRoom(ctx, in)
}

type fakeReviews struct {
	list    []domain.Review
	err     error
	created []domain.CreateReview
}

func (f *fakeReviews) GetReviews(ctx context.Context, roomID uuid.UUID) ([]domain.Review, error) {
	return f.list, f.err
}

func (f *fakeReviews) CreateReview(ctx context.Context, in domain.CreateReview) (domain.Review, error) {
	if f.err != nil {
		return domain.Review{}, f.err
	}
	f.created = append(f.created, in)
	return domain.Review{
		RoomID:             in.RoomID,
		AvailabilityRating: in.AvailabilityRating,
		SafetyRating:       in.SafetyRating,
		CleanlinessRating:  in.CleanlinessRating,
		Review:             in.Review,
		ReviewedBy:         in.ReviewedBy,
		ReviewedAt:         time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC),
	}, nil
}

func ptr[T any](v T) *T { return &v }

func roomsFC() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	f := geojson.NewFeature(orb.Point{10.75, 59.91})
	f.ID = "0b6f1c5e-4a5b-4c1d-9a7e-3f2b1c0d9e8f"
	f.Properties = geojson.Properties{"name": "Oslo S", "ratings": nil}
	fc.Append(f)
	return fc
}

// ---- tests ----

func TestMapPage(t *testing.T) {
	rooms := &fakeRooms{fc: roomsFC()}
	svc := app.NewService(rooms, &fakeReviews{}, nil, app.NewSessionStore(time.Hour))

	svc.StartPlacement("s1")
	svc.PlaceCandidate(context.Background(), "s1", domain.Location{Lat: 1, Lng: 2})

	page, err := svc.MapPage(context.Background(), "s1")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if page.State.Mode != app.ConfirmingPlacement || page.CanSubmit {
		t.Fatalf("state = %+v canSubmit=%v", page.State, page.CanSubmit)
	}
	if len(page.Rooms.Features) != 1 {
		t.Fatalf("rooms = %d", len(page.Rooms.Features))
	}
	if _, ok := page.Rooms.Features[0].Properties["page_url"]; !ok {
		t.Fatal("page_url missing")
	}
	if _, ok := rooms.fc.Features[0].Properties["page_url"]; ok {
		t.Fatal("client collection was decorated in place")
	}
}

func TestMapPage_ErrorPropagates(t *testing.T) {
	upstream := &domain.UpstreamError{Service: "room-api", StatusCode: 500, Body: "internal error"}
	svc := app.NewService(&fakeRooms{listErr: upstream}, &fakeReviews{}, nil, app.NewSessionStore(time.Hour))

	_, err := svc.MapPage(context.Background(), "s1")
	var ue *domain.UpstreamError
	if !errors.As(err, &ue) || ue.StatusCode != 500 || ue.Body != "internal error" {
		t.Fatalf("err = %v", err)
	}
}

func TestRoomDetails_ReviewsInOsloTime(t *testing.T) {
	id := uuid.New()
	reviews := &fakeReviews{list: []domain.Review{
		{RoomID: id, AvailabilityRating: 5, SafetyRating: 3, CleanlinessRating: 4, Review: ptr("Fint rom"),
			ReviewedAt: time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)},
		{RoomID: id, AvailabilityRating: 1, SafetyRating: 1, CleanlinessRating: 1,
			ReviewedAt: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)},
	}}
	rooms := &fakeRooms{room: domain.ChangingRoom{ID: id, Name: "Oslo S"}}
	svc := app.NewService(rooms, reviews, nil, app.NewSessionStore(time.Hour))

	d, err := svc.RoomDetails(context.Background(), id)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if d.Room.Name != "Oslo S" || len(d.Reviews) != 2 {
		t.Fatalf("details = %+v", d)
	}
	if *d.Reviews[0].Review != "Fint rom" {
		t.Fatal("order not preserved")
	}
	// CEST in June, CET in January
	if d.Reviews[0].ReviewedAt.Hour() != 12 || d.Reviews[1].ReviewedAt.Hour() != 11 {
		t.Fatalf("times = %v, %v", d.Reviews[0].ReviewedAt, d.Reviews[1].ReviewedAt)
	}
	if d.Reviews[0].ReviewedAt.Location().String() != "Europe/Oslo" {
		t.Fatalf("location = %v", d.Reviews[0].ReviewedAt.Location())
	}
	// source slice untouched
	if reviews.list[0].ReviewedAt.Location() != time.UTC {
		t.Fatal("input reviews modified")
	}
}

func TestRoomDetails_NotFound(t *testing.T) {
	nf := &domain.UpstreamError{StatusCode: 404, Body: "No room found"}
	svc := app.NewService(&fakeRooms{getErr: nf}, &fakeReviews{}, nil, app.NewSessionStore(time.Hour))

	_, err := svc.RoomDetails(context.Background(), uuid.New())
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestRoomDetails_ReviewError(t *testing.T) {
	boom := &domain.MalformedResponseError{Service: "review-api", Endpoint: "/reviews", Err: errors.New("bad")}
	svc := app.NewService(&fakeRooms{room: domain.ChangingRoom{ID: uuid.New()}}, &fakeReviews{err: boom}, nil, app.NewSessionStore(time.Hour))

	_, err := svc.RoomDetails(context.Background(), uuid.New())
	var me *domain.MalformedResponseError
	if !errors.As(err, &me) {
		t.Fatalf("err = %v", err)
	}
}
