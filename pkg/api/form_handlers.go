package api

import (
	"net/http"

	"github.com/oneform/formroom/pkg/forms"
	"github.com/oneform/formroom/pkg/httputil"
	"github.com/oneform/formroom/pkg/identity"
	"github.com/oneform/formroom/pkg/template"
)

type formRequest struct {
	Name string          `json:"name"`
	Data template.Record `json:"data"`
}

func (s *Server) handleListForms(w http.ResponseWriter, r *http.Request) {
	list, err := s.forms.List(r.Context(), identity.UserID(r.Context()))
	if err != nil {
		s.writeServiceError(w, r, err, "list forms")
		return
	}
	if list == nil {
		list = []*forms.Form{}
	}
	httputil.WriteOK(w, list)
}

func (s *Server) handleCreateForm(w http.ResponseWriter, r *http.Request) {
	var req formRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	f, err := s.forms.Create(r.Context(), identity.UserID(r.Context()), req.Name, req.Data)
	if err != nil {
		s.writeServiceError(w, r, err, "create form")
		return
	}
	httputil.WriteCreated(w, f)
}

func (s *Server) handleGetForm(w http.ResponseWriter, r *http.Request) {
	f, err := s.forms.Get(r.Context(), identity.UserID(r.Context()), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err, "get form")
		return
	}
	httputil.WriteOK(w, f)
}

func (s *Server) handleUpdateForm(w http.ResponseWriter, r *http.Request) {
	var req formRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	f, err := s.forms.Update(r.Context(), identity.UserID(r.Context()), r.PathValue("id"), req.Name, req.Data)
	if err != nil {
		s.writeServiceError(w, r, err, "update form")
		return
	}
	httputil.WriteOK(w, f)
}

func (s *Server) handleDeleteForm(w http.ResponseWriter, r *http.Request) {
	if err := s.forms.Delete(r.Context(), identity.UserID(r.Context()), r.PathValue("id")); err != nil {
		s.writeServiceError(w, r, err, "delete form")
		return
	}
	httputil.WriteNoContent(w)
}
