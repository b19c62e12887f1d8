package api

import (
	"net/http"

	"github.com/oneform/formroom/pkg/httputil"
	"github.com/oneform/formroom/pkg/identity"
	"github.com/oneform/formroom/pkg/plans"
	"github.com/oneform/formroom/pkg/rooms"
)

func (s *Server) handleListJoined(w http.ResponseWriter, r *http.Request) {
	list, err := s.rooms.ListJoined(r.Context(), identity.UserID(r.Context()))
	if err != nil {
		s.writeServiceError(w, r, err, "list joined rooms")
		return
	}
	if list == nil {
		list = []*rooms.Access{}
	}
	httputil.WriteOK(w, list)
}

func (s *Server) handleUpdateJoined(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	a, err := s.rooms.UpdateJoined(r.Context(), identity.UserID(r.Context()), r.PathValue("accessId"), req.FormID, req.Window)
	if err != nil {
		s.writeServiceError(w, r, err, "update joined room")
		return
	}
	httputil.WriteOK(w, a)
}

func (s *Server) handleSetJoinedWindow(w http.ResponseWriter, r *http.Request) {
	var win rooms.Window
	if err := httputil.DecodeJSON(w, r, &win); err != nil {
		writeDecodeError(w, err)
		return
	}
	a, err := s.rooms.SetAccessWindow(r.Context(), identity.UserID(r.Context()), r.PathValue("accessId"), win)
	if err != nil {
		s.writeServiceError(w, r, err, "set access window")
		return
	}
	httputil.WriteOK(w, a)
}

func (s *Server) handleLeave(w http.ResponseWriter, r *http.Request) {
	if err := s.rooms.Leave(r.Context(), identity.UserID(r.Context()), r.PathValue("accessId")); err != nil {
		s.writeServiceError(w, r, err, "leave room")
		return
	}
	httputil.WriteNoContent(w)
}

type accountResponse struct {
	UserID     string     `json:"userId"`
	Plan       plans.Plan `json:"plan"`
	PlanName   string     `json:"planName"`
	OwnedRooms int        `json:"ownedRooms"`
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserID(r.Context())
	plan := plans.Resolve(plans.Basic)
	if s.accounts != nil {
		p, err := s.accounts.Plan(r.Context(), userID)
		if err != nil {
			s.writeServiceError(w, r, err, "get account")
			return
		}
		plan = p
	}
	owned, err := s.rooms.ListOwned(r.Context(), userID)
	if err != nil {
		s.writeServiceError(w, r, err, "get account")
		return
	}
	httputil.WriteOK(w, accountResponse{
		UserID:     userID,
		Plan:       plan,
		PlanName:   plans.DisplayName(plan.Name),
		OwnedRooms: len(owned),
	})
}
