// internal/handlers/qr.go
package handlers

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"github.com/skip2/go-qrcode"
)

const qrSize = 320

// RoomQRHandler renders a PNG QR code linking to the frontend with the room preselected.
//
//	GET /rooms/{room}/qr
func RoomQRHandler(logger *logrus.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		room := chi.URLParam(r, "room")
		if room == "" {
			writeError(w, http.StatusBadRequest, "missing room")
			return
		}

		link := joinURL(r, room)
		png, err := qrcode.Encode(link, qrcode.Medium, qrSize)
		if err != nil {
			logger.WithError(err).WithField("room", room).Error("qr generation failed")
			writeError(w, http.StatusInternalServerError, "qr generation failed")
			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "public, max-age=300")
		_, _ = w.Write(png)
	}
}

// joinURL respects TLS and X-Forwarded-Proto when picking the scheme.
func joinURL(r *http.Request, room string) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	u := url.URL{
		Scheme:   scheme,
		Host:     r.Host,
		Path:     "/",
		RawQuery: url.Values{"room": {room}}.Encode(),
	}
	return u.String()
}
