package http

import (
	"net/http"
)

func (s *Server) handleGetConfiguration(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	cfg, err := s.svc.GetConfiguration(r.Context(), owner)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(newConfigurationDTO(cfg)).Write(w)
}

func (s *Server) handleSaveConfiguration(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req configurationDTO
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	cfg, err := req.toConfiguration(owner)
	if err != nil {
		writeError(w, r, err)
		return
	}
	saved, err := s.svc.SaveConfiguration(r.Context(), cfg)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(newConfigurationDTO(saved)).Write(w)
}

func (s *Server) handleProvision(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req provisionRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
	}
	cfg, created, err := s.svc.ProvisionOwner(r.Context(), owner, sanitizeInput(req.AdminID), req.FiscalYear)
	if err != nil {
		writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	NewJSONResponse().
		Status(status).
		Body(provisionResponse{Created: created, Configuration: newConfigurationDTO(cfg)}).
		Write(w)
}

func (s *Server) handleRecalculate(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	balances, err := s.svc.RecalculateOwner(r.Context(), owner)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(newRecalculateResponse(balances)).Write(w)
}

func (s *Server) handleOpening(w http.ResponseWriter, r *http.Request) {
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
	opening, err := s.svc.OpeningBalanceFor(r.Context(), owner, p.Month, p.Year)
	if err != nil {
		writeError(w, r, err)
		return
	}
	year, err := s.svc.FiscalYear(r.Context(), owner)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().
		Body(openingResponse{Year: year, Month: p.Month, Opening: opening.StringFixed(2)}).
		Write(w)
}

func (s *Server) handleTotals(w http.ResponseWriter, r *http.Request) {
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
	totals, err := s.svc.ComputePeriodTotals(r.Context(), owner, p.Month, p.Year)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(newTotalsDTO(totals)).Write(w)
}

func (s *Server) handleBalances(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rows, err := s.svc.Balances(r.Context(), owner)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]totalsDTO, 0, len(rows))
	for _, t := range rows {
		out = append(out, newTotalsDTO(t))
	}
	NewJSONResponse().Body(out).Write(w)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
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
	report, err := s.svc.YearReport(r.Context(), owner, p.Month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(newReportDTO(report)).Write(w)
}

func (s *Server) handleManagedOwners(w http.ResponseWriter, r *http.Request) {
	admin := sanitizeInput(r.PathValue("admin"))
	owners, err := s.svc.ManagedOwners(r.Context(), admin)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]configurationDTO, 0, len(owners))
	for _, cfg := range owners {
		out = append(out, newConfigurationDTO(cfg))
	}
	NewJSONResponse().Body(out).Write(w)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]string{"status": "ok"}).Write(w)
}
