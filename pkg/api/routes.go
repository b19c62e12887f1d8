package api

import "net/http"

// route is one API endpoint. Authenticated routes run behind the bearer
// token middleware.
type route struct {
	method  string
	path    string
	auth    bool
	handler func(*Server, http.ResponseWriter, *http.Request)
}

// routes lists every endpoint except /metrics, which exists only when a
// registry is configured. openapi.yaml documents the same set.
var routes = []route{
	{http.MethodGet, "/health", false, (*Server).handleHealth},
	{http.MethodGet, "/v1/openapi.json", false, (*Server).handleOpenAPI},

	// Stateless template tools.
	{http.MethodPost, "/v1/fill", false, (*Server).handleFill},
	{http.MethodPost, "/v1/templates/validate", false, (*Server).handleValidateTemplate},

	{http.MethodGet, "/v1/account", true, (*Server).handleGetAccount},

	{http.MethodGet, "/v1/forms", true, (*Server).handleListForms},
	{http.MethodPost, "/v1/forms", true, (*Server).handleCreateForm},
	{http.MethodGet, "/v1/forms/{id}", true, (*Server).handleGetForm},
	{http.MethodPut, "/v1/forms/{id}", true, (*Server).handleUpdateForm},
	{http.MethodDelete, "/v1/forms/{id}", true, (*Server).handleDeleteForm},

	{http.MethodGet, "/v1/rooms", true, (*Server).handleListRooms},
	{http.MethodPost, "/v1/rooms", true, (*Server).handleCreateRoom},
	{http.MethodGet, "/v1/rooms/{id}", true, (*Server).handleGetRoom},
	{http.MethodPut, "/v1/rooms/{id}", true, (*Server).handleUpdateRoom},
	{http.MethodDelete, "/v1/rooms/{id}", true, (*Server).handleDeleteRoom},
	{http.MethodPut, "/v1/rooms/{id}/window", true, (*Server).handleSetRoomWindow},
	{http.MethodGet, "/v1/rooms/{id}/invite", true, (*Server).handleInvite},
	{http.MethodPost, "/v1/rooms/{id}/preview", true, (*Server).handlePreview},
	{http.MethodPost, "/v1/rooms/{id}/join", true, (*Server).handleJoin},
	{http.MethodGet, "/v1/rooms/{id}/responses", true, (*Server).handleListResponses},
	{http.MethodGet, "/v1/rooms/{id}/responses/{accessId}", true, (*Server).handleGetResponse},

	{http.MethodGet, "/v1/joined", true, (*Server).handleListJoined},
	{http.MethodPut, "/v1/joined/{accessId}", true, (*Server).handleUpdateJoined},
	{http.MethodPut, "/v1/joined/{accessId}/window", true, (*Server).handleSetJoinedWindow},
	{http.MethodDelete, "/v1/joined/{accessId}", true, (*Server).handleLeave},
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	if s.registry != nil {
		mux.Handle("GET /metrics", s.registry.Handler())
	}
	for _, rt := range routes {
		h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { rt.handler(s, w, r) })
		if rt.auth {
			mux.Handle(rt.method+" "+rt.path, s.authed(h))
			continue
		}
		mux.Handle(rt.method+" "+rt.path, h)
	}
}
