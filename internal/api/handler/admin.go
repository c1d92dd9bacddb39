package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/mcoot/chathub/internal/api/apierr"
	"github.com/mcoot/chathub/internal/api/response"
	"github.com/mcoot/chathub/internal/model"
	"github.com/mcoot/chathub/internal/scheduler"
)

// Diagnostics is the read side of the hub exposed to operators
type Diagnostics interface {
	SessionCount() int
	ConnectionCount() int
	Sessions() []model.Session
	RoomUserCounts() []model.RoomCount
	RoomUserCount(id model.RoomID) (model.RoomCount, error)
	SchedulerStats() []scheduler.Stats
	ResetSessions(ctx context.Context) int
}

// AdminHandler handles operator diagnostics endpoints
type AdminHandler struct {
	diag     Diagnostics
	serverID string
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(diag Diagnostics, serverID string) *AdminHandler {
	return &AdminHandler{diag: diag, serverID: serverID}
}

// Health handles GET /api/v1/health
func (h *AdminHandler) Health(w http.ResponseWriter, _ *http.Request) {
	response.JSON(w, http.StatusOK, response.Health{Status: "ok", ServerID: h.serverID})
}

// ListSessions handles GET /api/v1/admin/sessions
func (h *AdminHandler) ListSessions(w http.ResponseWriter, _ *http.Request) {
	response.JSON(w, http.StatusOK, response.SessionListFromModel(h.diag.Sessions()))
}

// SessionCount handles GET /api/v1/admin/sessions/count
func (h *AdminHandler) SessionCount(w http.ResponseWriter, _ *http.Request) {
	response.JSON(w, http.StatusOK, response.Count{Count: h.diag.SessionCount()})
}

// ResetSessions handles DELETE /api/v1/admin/sessions
func (h *AdminHandler) ResetSessions(w http.ResponseWriter, r *http.Request) {
	removed := h.diag.ResetSessions(r.Context())
	response.JSON(w, http.StatusOK, response.Reset{Removed: removed})
}

// ConnectionCount handles GET /api/v1/admin/connections/count
func (h *AdminHandler) ConnectionCount(w http.ResponseWriter, _ *http.Request) {
	response.JSON(w, http.StatusOK, response.Count{Count: h.diag.ConnectionCount()})
}

// ListRooms handles GET /api/v1/admin/rooms
func (h *AdminHandler) ListRooms(w http.ResponseWriter, _ *http.Request) {
	response.JSON(w, http.StatusOK, response.RoomListFromModel(h.diag.RoomUserCounts()))
}

// GetRoom handles GET /api/v1/admin/rooms/{room_id}
func (h *AdminHandler) GetRoom(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["room_id"])
	if err != nil {
		apierr.WriteError(w, apierr.NewInvalidRequestError("room_id must be an integer"))
		return
	}

	count, err := h.diag.RoomUserCount(model.RoomID(id))
	if err != nil {
		apierr.WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.RoomFromModel(count))
}

// Schedulers handles GET /api/v1/admin/scheduler
func (h *AdminHandler) Schedulers(w http.ResponseWriter, _ *http.Request) {
	response.JSON(w, http.StatusOK, response.SchedulersFromStats(h.diag.SchedulerStats()))
}
