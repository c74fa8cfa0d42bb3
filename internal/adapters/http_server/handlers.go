// internal/adapters/http_server/handlers.go
package httpserver

import (
	"context"
	"crypto/sha1"
	"embed"
	"encoding/hex"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jub0bs/fcors"
	"github.com/rs/zerolog/log"

	"stellerom/internal/app"
	"stellerom/internal/domain"
)

//go:embed templates/*.html
var templateFS embed.FS

type Handlers struct {
	Svc   *app.Service
	pages map[string]*template.Template
}

func NewHandlers(svc *app.Service) (*Handlers, error) {
	funcs := template.FuncMap{
		"stars": func(r domain.StarRating) string {
			if !r.Valid() {
				return "-"
			}
			return strconv.Itoa(int(r)) + "/5"
		},
		"deref": func(p *string) string {
			if p == nil {
				return ""
			}
			return *p
		},
		"fmtTime": func(t time.Time) string { return t.Format("02.01.2006 15:04") },
		"ratingOpt": func(p *domain.StarRating) string {
			if p == nil || !p.Valid() {
				return "-"
			}
			return strconv.Itoa(int(*p)) + "/5"
		},
		"seq": func() []domain.StarRating {
			out := make([]domain.StarRating, 0, domain.MaxStarRating)
			for r := domain.MinStarRating; r <= domain.MaxStarRating; r++ {
				out = append(out, r)
			}
			return out
		},
	}
	pages := map[string]*template.Template{}
	for _, name := range []string{"map", "room", "osm_sync", "error"} {
		t, err := template.New("layout.html").Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, err
		}
		pages[name] = t
	}
	return &Handlers{Svc: svc, pages: pages}, nil
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// MountHandlers registers every route. Page routes get a session cookie;
// /api/rooms is readable cross-origin from corsOrigins (any origin if empty).
func (s *Server) MountHandlers(h *Handlers, sessionTTL time.Duration, corsOrigins []string) error {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })

	from := fcors.FromAnyOrigin()
	if len(corsOrigins) > 0 {
		from = fcors.FromOrigins(corsOrigins[0], corsOrigins[1:]...)
	}
	cors, err := fcors.AllowAccess(from, fcors.WithRequestHeaders("If-None-Match"))
	if err != nil {
		return err
	}
	s.mux.With(cors).Get("/api/rooms", h.roomsJSON)
	s.mux.With(cors).Options("/api/rooms", func(w http.ResponseWriter, r *http.Request) {})

	s.mux.Group(func(r chi.Router) {
		r.Use(Sessions(sessionTTL))
		r.Get("/", h.mapPage)
		r.Post("/map/placement", h.startPlacement)
		r.Post("/map/placement/click", h.placementClick)
		r.Post("/map/placement/cancel", h.cancelPlacement)
		r.Post("/map/placement/submit", h.submitPlacement)
		r.Post("/map/location", h.requestLocation)
		r.Post("/map/location/resolve", h.resolveLocation)
		r.Get("/rooms/{id}", h.roomPage)
		r.Post("/rooms/{id}/reviews", h.createReview)
		r.Get("/osm-sync", h.osmSyncPage)
	})
	return nil
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

// errorStatus maps a service error to the status of the page that reports it.
func errorStatus(err error) int {
	var (
		ve *domain.ValidationError
		ue *domain.UpstreamError
		me *domain.MalformedResponseError
		te *domain.TransientTransportError
	)
	switch {
	case errors.As(err, &ve), errors.Is(err, domain.ErrSubmitNotAllowed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &ue), errors.As(err, &me), errors.As(err, &te):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

type errorView struct {
	Title    string
	Status   int
	Message  string
	Upstream *domain.UpstreamError
}

func (h *Handlers) render(w http.ResponseWriter, status int, page string, data any) {
	var buf strings.Builder
	if err := h.pages[page].ExecuteTemplate(&buf, "layout.html", data); err != nil {
		log.Error().Err(err).Str("page", page).Msg("render failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write([]byte(buf.String())); err != nil {
		log.Error().Err(err).Str("page", page).Msg("write page failed")
	}
}

// renderError shows err instead of the requested page.
func (h *Handlers) renderError(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	ev := log.Error()
	if status < 500 {
		ev = log.Warn()
	}
	ev.Err(err).Str("path", r.URL.Path).Int("status", status).Msg("request failed")

	v := errorView{Title: "Noe gikk galt", Status: status, Message: err.Error()}
	var ue *domain.UpstreamError
	if errors.As(err, &ue) {
		v.Upstream = ue
	}
	switch status {
	case http.StatusNotFound:
		v.Title = "Fant ikke rommet"
	case http.StatusUnprocessableEntity:
		v.Title = "Ugyldig innsending"
	}
	h.render(w, status, "error", v)
}

func seeOther(w http.ResponseWriter, r *http.Request, to string) {
	http.Redirect(w, r, to, http.StatusSeeOther)
}

// ---- map ----

type mapView struct {
	Title     string
	State     app.MapState
	Placing   bool
	CanSubmit bool
	RoomsJSON template.JS
}

func (h *Handlers) mapPage(w http.ResponseWriter, r *http.Request) {
	page, err := h.Svc.MapPage(r.Context(), SessionID(r.Context()))
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	b, err := json.Marshal(page.Rooms)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	h.render(w, http.StatusOK, "map", mapView{
		Title:     "Stellerom",
		State:     page.State,
		Placing:   page.State.Mode != app.Browsing,
		CanSubmit: page.CanSubmit,
		// json.Marshal escapes <, > and &
		RoomsJSON: template.JS(b),
	})
}

func (h *Handlers) startPlacement(w http.ResponseWriter, r *http.Request) {
	h.Svc.StartPlacement(SessionID(r.Context()))
	seeOther(w, r, "/")
}

func (h *Handlers) placementClick(w http.ResponseWriter, r *http.Request) {
	loc, ok := formLocation(r)
	if !ok {
		h.renderError(w, r, &domain.ValidationError{Err: errors.New("lat and lng must be valid coordinates")})
		return
	}
	// an emptied name field clears the name
	if r.PostForm.Has("name") {
		h.Svc.SetName(SessionID(r.Context()), r.PostForm.Get("name"))
	}
	h.Svc.PlaceCandidate(r.Context(), SessionID(r.Context()), loc)
	seeOther(w, r, "/")
}

func (h *Handlers) cancelPlacement(w http.ResponseWriter, r *http.Request) {
	h.Svc.CancelPlacement(SessionID(r.Context()))
	seeOther(w, r, "/")
}

func (h *Handlers) submitPlacement(w http.ResponseWriter, r *http.Request) {
	_, room, err := h.Svc.SubmitPlacement(r.Context(), SessionID(r.Context()), r.PostFormValue("name"))
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	if room != nil {
		log.Info().Str("id", room.ID.String()).Msg("room added from map")
	}
	seeOther(w, r, "/")
}

func (h *Handlers) requestLocation(w http.ResponseWriter, r *http.Request) {
	h.Svc.RequestLocation(SessionID(r.Context()))
	seeOther(w, r, "/")
}

func (h *Handlers) resolveLocation(w http.ResponseWriter, r *http.Request) {
	token := r.PostFormValue("token")
	var loc *domain.Location
	if r.PostFormValue("failed") == "" {
		l, ok := formLocation(r)
		if ok {
			loc = &l
		}
	}
	h.Svc.ResolveLocation(SessionID(r.Context()), token, loc)
	seeOther(w, r, "/")
}

func formLocation(r *http.Request) (domain.Location, bool) {
	lat, err1 := strconv.ParseFloat(strings.TrimSpace(r.PostFormValue("lat")), 64)
	lng, err2 := strconv.ParseFloat(strings.TrimSpace(r.PostFormValue("lng")), 64)
	if err1 != nil || err2 != nil || lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return domain.Location{}, false
	}
	return domain.Location{Lat: lat, Lng: lng}, true
}

func (h *Handlers) roomsJSON(w http.ResponseWriter, r *http.Request) {
	fc, err := h.Svc.RoomsGeoJSON(r.Context())
	if err != nil {
		status := errorStatus(err)
		log.Error().Err(err).Int("status", status).Msg("rooms json failed")
		writeProblem(w, status, http.StatusText(status), err.Error())
		return
	}

	etag, body := calcETagAndBody(fc)
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write rooms body")
	}
}

// ---- rooms ----

type roomView struct {
	Title   string
	Room    domain.ChangingRoom
	Reviews []domain.Review
	Created bool
}

func (h *Handlers) roomID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.renderError(w, r, domain.ErrNotFound)
		return uuid.UUID{}, false
	}
	return id, true
}

func (h *Handlers) roomPage(w http.ResponseWriter, r *http.Request) {
	id, ok := h.roomID(w, r)
	if !ok {
		return
	}
	d, err := h.Svc.RoomDetails(r.Context(), id)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	h.render(w, http.StatusOK, "room", roomView{
		Title:   "Stellerom " + d.Room.Name,
		Room:    d.Room,
		Reviews: d.Reviews,
		Created: r.URL.Query().Get("created") == "1",
	})
}

func (h *Handlers) createReview(w http.ResponseWriter, r *http.Request) {
	id, ok := h.roomID(w, r)
	if !ok {
		return
	}
	rating := func(k string) domain.StarRating {
		n, err := strconv.Atoi(r.PostFormValue(k))
		if err != nil {
			return 0
		}
		return domain.StarRating(n)
	}
	optional := func(k string) *string {
		v := r.PostFormValue(k)
		return &v
	}
	in := domain.CreateReview{
		RoomID:             id,
		AvailabilityRating: rating("availability"),
		SafetyRating:       rating("safety"),
		CleanlinessRating:  rating("cleanliness"),
		Review:             optional("review"),
		ImageURL:           optional("image_url"),
		ReviewedBy:         optional("reviewed_by"),
	}
	if _, err := h.Svc.CreateReview(r.Context(), in); err != nil {
		h.renderError(w, r, err)
		return
	}
	seeOther(w, r, app.RoomPagePath(id.String())+"?created=1")
}

func (h *Handlers) osmSyncPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, http.StatusOK, "osm_sync", struct{ Title string }{Title: "Open Street Map"})
}
