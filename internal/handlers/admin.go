// internal/handlers/admin.go
package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/jason-s-yu/keldurben/internal/hub"
	"github.com/sirupsen/logrus"
)

type adminResetRequest struct {
	Secret string `json:"secret"`
	Room   string `json:"room"`
}

type adminKickRequest struct {
	Secret string `json:"secret"`
	Player string `json:"player"`
	Room   string `json:"room"`
}

// AdminResetHandler resets a room to a fresh lobby.
//
//	POST /api/admin/reset {"secret": "...", "room": "optional"}
func AdminResetHandler(logger *logrus.Logger, h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req adminResetRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if !h.CheckAdminSecret(req.Secret) {
			logger.WithField("remote", r.RemoteAddr).Warn("admin reset with bad secret")
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		if !h.ResetRoom(req.Room) {
			writeError(w, http.StatusNotFound, "no such room")
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	}
}

// AdminKickHandler removes one player from a room.
//
//	POST /api/admin/kick {"secret": "...", "player": "<uuid>", "room": "optional"}
func AdminKickHandler(logger *logrus.Logger, h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req adminKickRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if !h.CheckAdminSecret(req.Secret) {
			logger.WithField("remote", r.RemoteAddr).Warn("admin kick with bad secret")
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		player, err := uuid.Parse(req.Player)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid player id")
			return
		}
		if !h.KickPlayer(req.Room, player) {
			writeError(w, http.StatusNotFound, "no such player")
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	}
}

// DebugStateHandler dumps a summary of every room.
func DebugStateHandler(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, h.Stats())
	}
}
