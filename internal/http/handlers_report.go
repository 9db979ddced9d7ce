package http

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"spendhelm/internal/core"
	"spendhelm/internal/log"
)

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	period := r.URL.Query().Get("period")
	report, err := s.svc.Analytics.Report(r.Context(), session(r), period)
	if err != nil {
		writeError(w, r, err)
		return
	}
	log.FromContext(r.Context()).DebugContext(r.Context(), "Report computed",
		log.FieldPeriod, string(report.Period),
		"expense_count", report.Count)
	writeJSON(w, http.StatusOK, report)
}

type aggregateList struct {
	Aggregates []core.Aggregate `json:"aggregates"`
	Count      int              `json:"count"`
}

func (s *Server) handleListAggregates(w http.ResponseWriter, r *http.Request) {
	f, err := ParseAggregateFilter(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	items, err := s.svc.Aggregates.List(r.Context(), session(r), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if items == nil {
		items = []core.Aggregate{}
	}
	writeJSON(w, http.StatusOK, aggregateList{Aggregates: items, Count: len(items)})
}

func (s *Server) handleGetAggregate(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	p, err := core.ParsePeriodType(vars["period_type"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	start, err := core.ParseDate(vars["period_start"])
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: period_start", errBadQuery))
		return
	}
	a, err := s.svc.Aggregates.Get(r.Context(), session(r), vars["user_id"], p, start)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}
