package app

import (
	"fmt"
	"html"
	"strconv"

	"github.com/paulmach/orb/geojson"

	"stellerom/internal/adapters/roomapi"
)

const noReviewsHTML = "<p>Ingen anmeldelser enda.</p>"

// RoomPagePath is the detail page of one room.
func RoomPagePath(id string) string { return "/rooms/" + id }

// DecorateRooms returns a copy of fc where every feature also carries the
// popup properties ratings_html and page_url. fc itself is not modified.
func DecorateRooms(fc *geojson.FeatureCollection) *geojson.FeatureCollection {
	out := geojson.NewFeatureCollection()
	if fc == nil {
		return out
	}
	for _, f := range fc.Features {
		if f == nil {
			continue
		}
		cp := *f
		cp.Properties = f.Properties.Clone()
		if cp.Properties == nil {
			cp.Properties = geojson.Properties{}
		}
		cp.Properties["ratings_html"] = ratingsHTML(cp.Properties)
		cp.Properties["page_url"] = pageLinkHTML(roomapi.FeatureID(f))
		out.Append(&cp)
	}
	return out
}

func ratingsHTML(p geojson.Properties) string {
	r, ok := p["ratings"].(map[string]any)
	if !ok || len(r) == 0 {
		return noReviewsHTML
	}
	return "<ul>" +
		"<li>Tilgjengelighet: " + ratingText(r, "availability") + "/5</li>" +
		"<li>Sikkerhet " + ratingText(r, "safety") + "/5</li>" +
		"<li>Renslighet " + ratingText(r, "cleanliness") + "/5</li>" +
		"</ul>"
}

func pageLinkHTML(id string) string {
	return fmt.Sprintf(`<a href="%s" target="_blank"><button>Åpne rom</button></a>`, html.EscapeString(RoomPagePath(id)))
}

func ratingText(m map[string]any, key string) string {
	f, ok := m[key].(float64)
	if !ok {
		return "-"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
