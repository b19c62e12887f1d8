package api

import (
	"net/http"

	"github.com/oneform/formroom/pkg/httputil"
	"github.com/oneform/formroom/pkg/metrics"
	"github.com/oneform/formroom/pkg/template"
)

type healthResponse struct {
	Status string `json:"status"`
	Uptime int64  `json:"uptime"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteOK(w, healthResponse{Status: "ok", Uptime: int64(s.uptime().Seconds())})
}

type fillRequest struct {
	Template string `json:"template"`
	Record   any    `json:"record"`
}

func (s *Server) handleFill(w http.ResponseWriter, r *http.Request) {
	var req fillRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	res := s.engine.Fill(req.Template, req.Record)
	metrics.RecordFill(res.Complete())
	httputil.WriteOK(w, res)
}

type validateTemplateRequest struct {
	Template string `json:"template"`
}

type validateTemplateResponse struct {
	Valid  bool                    `json:"valid"`
	Paths  []string                `json:"paths"`
	Errors []*template.SyntaxError `json:"errors"`
}

func (s *Server) handleValidateTemplate(w http.ResponseWriter, r *http.Request) {
	var req validateTemplateRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	errs := template.Check(req.Template)
	if errs == nil {
		errs = []*template.SyntaxError{}
	}
	paths := template.Paths(req.Template)
	if paths == nil {
		paths = []string{}
	}
	httputil.WriteOK(w, validateTemplateResponse{Valid: len(errs) == 0, Paths: paths, Errors: errs})
}
