package http

import (
	"net/http"

	"tesouraria/internal/core"
)

func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := ParsePeriodParams(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	entries, err := s.svc.ListEntries(r.Context(), owner, core.EntryFilter{Year: p.Year, Month: p.Month})
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(newEntryResponses(entries)).Write(w)
}

func (s *Server) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req entryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	e, err := req.toEntry(owner, "")
	if err != nil {
		writeError(w, r, err)
		return
	}
	created, err := s.svc.CreateEntry(r.Context(), e)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/owners/"+owner+"/entries/"+created.ID).
		Body(newEntryResponse(created)).
		Write(w)
}

func (s *Server) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	e, err := s.svc.GetEntry(r.Context(), owner, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(newEntryResponse(e)).Write(w)
}

func (s *Server) handleUpdateEntry(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req entryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	e, err := req.toEntry(owner, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	updated, err := s.svc.UpdateEntry(r.Context(), e)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(newEntryResponse(updated)).Write(w)
}

func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.svc.DeleteEntry(r.Context(), owner, r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}
