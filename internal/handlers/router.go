// internal/handlers/router.go
package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jason-s-yu/keldurben/internal/hub"
	"github.com/jason-s-yu/keldurben/internal/middleware"
	"github.com/sirupsen/logrus"
)

// Deps is everything the HTTP surface is built from.
type Deps struct {
	Logger *logrus.Logger
	Hub    *hub.Hub
	Tokens TokenVerifier
	// Accounts is nil when no database is configured; the account endpoints then answer 503.
	Accounts *Accounts
	WS       WSOptions
	// AllowedOrigins are full origins such as https://example.com. Empty allows any http(s) origin.
	AllowedOrigins []string
	StaticDir      string
}

// NewRouter wires every route onto a chi router.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Heartbeat("/ping"))
	r.Use(middleware.LogMiddleware(d.Logger))

	origins := d.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"https://*", "http://*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	ws := d.WS
	if len(ws.OriginPatterns) == 0 {
		ws.OriginPatterns = originHosts(d.AllowedOrigins)
	}
	r.Get("/ws", WSHandler(d.Logger, d.Hub, d.Tokens, ws))

	r.Route("/api", func(r chi.Router) {
		if d.Accounts != nil {
			r.Post("/auth/register", d.Accounts.RegisterHandler)
			r.Post("/auth/login", d.Accounts.LoginHandler)
			r.Get("/me", d.Accounts.MeHandler)
		} else {
			disabled := func(w http.ResponseWriter, r *http.Request) {
				writeError(w, http.StatusServiceUnavailable, "accounts are disabled")
			}
			r.Post("/auth/register", disabled)
			r.Post("/auth/login", disabled)
			r.Get("/me", disabled)
		}
		r.Post("/admin/reset", AdminResetHandler(d.Logger, d.Hub))
		r.Post("/admin/kick", AdminKickHandler(d.Logger, d.Hub))
		r.Get("/debug/state", DebugStateHandler(d.Hub))
	})

	r.Get("/rooms/{room}/qr", RoomQRHandler(d.Logger))

	if d.StaticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(d.StaticDir)))
	}
	return r
}

// originHosts strips the scheme from each origin; websocket origin checks match on host.
func originHosts(origins []string) []string {
	var out []string
	for _, o := range origins {
		o = strings.TrimPrefix(strings.TrimPrefix(o, "https://"), "http://")
		if o = strings.TrimSuffix(o, "/"); o != "" {
			out = append(out, o)
		}
	}
	return out
}
