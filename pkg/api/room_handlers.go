package api

import (
	"net/http"

	"github.com/oneform/formroom/pkg/httputil"
	"github.com/oneform/formroom/pkg/identity"
	"github.com/oneform/formroom/pkg/rooms"
)

// roomView adds the invite link to rooms shown to their owner.
type roomView struct {
	*rooms.Room
	InviteLink string `json:"inviteLink,omitempty"`
}

func (s *Server) view(userID string, room *rooms.Room) roomView {
	v := roomView{Room: room}
	if room.OwnerID == userID && !room.DecryptionError {
		v.InviteLink = s.rooms.InviteLink(room)
	}
	return v
}

func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserID(r.Context())
	list, err := s.rooms.ListOwned(r.Context(), userID)
	if err != nil {
		s.writeServiceError(w, r, err, "list rooms")
		return
	}
	out := make([]roomView, 0, len(list))
	for _, room := range list {
		out = append(out, s.view(userID, room))
	}
	httputil.WriteOK(w, out)
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var in rooms.RoomInput
	if err := httputil.DecodeJSON(w, r, &in); err != nil {
		writeDecodeError(w, err)
		return
	}
	userID := identity.UserID(r.Context())
	room, err := s.rooms.Create(r.Context(), userID, in)
	if err != nil {
		s.writeServiceError(w, r, err, "create room")
		return
	}
	httputil.WriteCreated(w, s.view(userID, room))
}

func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserID(r.Context())
	room, err := s.rooms.Get(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err, "get room")
		return
	}
	httputil.WriteOK(w, s.view(userID, room))
}

func (s *Server) handleUpdateRoom(w http.ResponseWriter, r *http.Request) {
	var in rooms.RoomInput
	if err := httputil.DecodeJSON(w, r, &in); err != nil {
		writeDecodeError(w, err)
		return
	}
	userID := identity.UserID(r.Context())
	room, err := s.rooms.Update(r.Context(), userID, r.PathValue("id"), in)
	if err != nil {
		s.writeServiceError(w, r, err, "update room")
		return
	}
	httputil.WriteOK(w, s.view(userID, room))
}

func (s *Server) handleDeleteRoom(w http.ResponseWriter, r *http.Request) {
	if err := s.rooms.Delete(r.Context(), identity.UserID(r.Context()), r.PathValue("id")); err != nil {
		s.writeServiceError(w, r, err, "delete room")
		return
	}
	httputil.WriteNoContent(w)
}

func (s *Server) handleSetRoomWindow(w http.ResponseWriter, r *http.Request) {
	var win rooms.Window
	if err := httputil.DecodeJSON(w, r, &win); err != nil {
		writeDecodeError(w, err)
		return
	}
	userID := identity.UserID(r.Context())
	room, err := s.rooms.SetRecommendedWindow(r.Context(), userID, r.PathValue("id"), win)
	if err != nil {
		s.writeServiceError(w, r, err, "set room window")
		return
	}
	httputil.WriteOK(w, s.view(userID, room))
}

type inviteResponse struct {
	RoomID string `json:"roomId"`
	Link   string `json:"link"`
}

func (s *Server) handleInvite(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserID(r.Context())
	room, err := s.rooms.Get(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err, "invite link")
		return
	}
	if room.OwnerID != userID {
		s.writeServiceError(w, r, rooms.ErrForbidden, "invite link")
		return
	}
	httputil.WriteOK(w, inviteResponse{RoomID: room.ID, Link: s.rooms.InviteLink(room)})
}

type joinRequest struct {
	FormID string       `json:"formId"`
	Window rooms.Window `json:"window"`
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	p, err := s.rooms.Preview(r.Context(), identity.UserID(r.Context()), r.PathValue("id"), req.FormID)
	if err != nil {
		s.writeServiceError(w, r, err, "preview")
		return
	}
	httputil.WriteOK(w, p)
}

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	a, err := s.rooms.Join(r.Context(), identity.UserID(r.Context()), r.PathValue("id"), req.FormID, req.Window)
	if err != nil {
		s.writeServiceError(w, r, err, "join room")
		return
	}
	httputil.WriteCreated(w, a)
}

func (s *Server) handleListResponses(w http.ResponseWriter, r *http.Request) {
	list, err := s.rooms.Responses(r.Context(), identity.UserID(r.Context()), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err, "list responses")
		return
	}
	if list == nil {
		list = []*rooms.Response{}
	}
	httputil.WriteOK(w, list)
}

func (s *Server) handleGetResponse(w http.ResponseWriter, r *http.Request) {
	resp, err := s.rooms.Response(r.Context(), identity.UserID(r.Context()), r.PathValue("id"), r.PathValue("accessId"))
	if err != nil {
		s.writeServiceError(w, r, err, "get response")
		return
	}
	httputil.WriteOK(w, resp)
}
