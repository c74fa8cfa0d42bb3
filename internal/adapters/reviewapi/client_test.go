package reviewapi_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stellerom/internal/adapters/reviewapi"
	"stellerom/internal/adapters/upstream"
	"stellerom/internal/domain"
)

func strp(s string) *string { return &s }

func newClient(t *testing.T, base string) *reviewapi.Client {
	t.Helper()
	hc, err := upstream.New(reviewapi.Service, base, upstream.Options{RPS: 100})
	require.NoError(t, err)
	return reviewapi.New(hc)
}

// fakeReviewAPI stores posted reviews in memory and stamps reviewedAt.
func fakeReviewAPI(t *testing.T, now time.Time) (*httptest.Server, *int32) {
	t.Helper()
	var hits int32
	var stored []domain.Review
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		switch r.Method {
		case http.MethodPost:
			var in domain.CreateReview
			if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			rv := domain.Review{
				RoomID:             in.RoomID,
				AvailabilityRating: in.AvailabilityRating,
				SafetyRating:       in.SafetyRating,
				CleanlinessRating:  in.CleanlinessRating,
				Review:             in.Review,
				ImageURL:           in.ImageURL,
				ReviewedBy:         in.ReviewedBy,
				ReviewedAt:         now,
			}
			stored = append(stored, rv)
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(rv)
		case http.MethodGet:
			id := r.URL.Query().Get("roomId")
			out := []domain.Review{}
			for _, rv := range stored {
				if rv.RoomID.String() == id {
					out = append(out, rv)
				}
			}
			_ = json.NewEncoder(w).Encode(out)
		}
	}))
	t.Cleanup(ts.Close)
	return ts, &hits
}

func TestCreateReview_RoundTrip(t *testing.T) {
	now := time.Date(2024, 5, 17, 10, 30, 0, 0, time.UTC)
	ts, _ := fakeReviewAPI(t, now)
	cl := newClient(t, ts.URL)
	room := uuid.New()
	ctx := context.Background()

	got, err := cl.CreateReview(ctx, domain.CreateReview{
		RoomID:             room,
		AvailabilityRating: 5,
		SafetyRating:       3,
		CleanlinessRating:  4,
		Review:             strp("Fint rom"),
		ReviewedBy:         strp("Kari"),
		ImageURL:           strp("   "),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StarRating(5), got.AvailabilityRating)
	assert.Equal(t, domain.StarRating(3), got.SafetyRating)
	assert.Equal(t, domain.StarRating(4), got.CleanlinessRating)
	assert.Equal(t, "Fint rom", *got.Review)
	assert.Equal(t, "Kari", *got.ReviewedBy)
	assert.Nil(t, got.ImageURL)
	assert.True(t, got.ReviewedAt.Equal(now))

	list, err := cl.GetReviews(ctx, room)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, room, list[0].RoomID)
	assert.Equal(t, "Fint rom", *list[0].Review)
	assert.True(t, list[0].ReviewedAt.Equal(now))
}

func TestCreateReview_RatingOutOfRangeNoNetwork(t *testing.T) {
	ts, hits := fakeReviewAPI(t, time.Now())
	cl := newClient(t, ts.URL)

	for _, bad := range []domain.StarRating{0, 6} {
		_, err := cl.CreateReview(context.Background(), domain.CreateReview{
			RoomID:             uuid.New(),
			AvailabilityRating: bad,
			SafetyRating:       3,
			CleanlinessRating:  3,
		})
		var ve *domain.ValidationError
		assert.ErrorAs(t, err, &ve, "rating %d", bad)
	}
	assert.Equal(t, int32(0), atomic.LoadInt32(hits))
}

func TestGetReviews_OrderPreserved(t *testing.T) {
	room := uuid.New()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, room.String(), r.URL.Query().Get("roomId"))
		_, _ = io.WriteString(w, `[
		  {"roomId":"`+room.String()+`","availabilityRating":1,"safetyRating":1,"cleanlinessRating":1,"review":"b","reviewedAt":"2024-02-01T12:00:00Z"},
		  {"roomId":"`+room.String()+`","availabilityRating":2,"safetyRating":2,"cleanlinessRating":2,"review":"a","reviewedAt":"2024-01-01T12:00:00Z"}
		]`)
	}))
	defer ts.Close()

	list, err := newClient(t, ts.URL).GetReviews(context.Background(), room)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "b", *list[0].Review)
	assert.Equal(t, "a", *list[1].Review)
}

func TestGetReviews_Malformed(t *testing.T) {
	for name, body := range map[string]string{
		"not json":       `<html>`,
		"rating 9":       `[{"roomId":"` + uuid.NewString() + `","availabilityRating":9,"safetyRating":1,"cleanlinessRating":1,"reviewedAt":"2024-01-01T12:00:00Z"}]`,
		"no reviewed at": `[{"roomId":"` + uuid.NewString() + `","availabilityRating":1,"safetyRating":1,"cleanlinessRating":1}]`,
	} {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, body)
		}))
		_, err := newClient(t, ts.URL).GetReviews(context.Background(), uuid.New())
		var me *domain.MalformedResponseError
		assert.ErrorAs(t, err, &me, name)
		ts.Close()
	}
}

func TestGetReviews_EmptyIsNotNil(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `null`)
	}))
	defer ts.Close()

	list, err := newClient(t, ts.URL).GetReviews(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}

func TestCreateReview_UpstreamError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, "internal error")
	}))
	defer ts.Close()

	_, err := newClient(t, ts.URL).CreateReview(context.Background(), domain.CreateReview{
		RoomID: uuid.New(), AvailabilityRating: 1, SafetyRating: 1, CleanlinessRating: 1,
	})
	var ue *domain.UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, 500, ue.StatusCode)
	assert.Equal(t, "internal error", ue.Body)
}
