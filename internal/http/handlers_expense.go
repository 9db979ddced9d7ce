package http

import (
	"net/http"

	"github.com/gorilla/mux"

	"spendhelm/internal/core"
	"spendhelm/internal/services"
)

type expenseList struct {
	Expenses []core.Expense `json:"expenses"`
	Count    int            `json:"count"`
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	f, err := ParseExpenseFilter(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	items, err := s.svc.Expenses.List(r.Context(), session(r), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if items == nil {
		items = []core.Expense{}
	}
	writeJSON(w, http.StatusOK, expenseList{Expenses: items, Count: len(items)})
}

// handleCreateExpense answers 201 for a new expense and 200 when the
// request_id matched an earlier one.
func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var in services.ExpenseInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	e, created, err := s.svc.Expenses.Create(r.Context(), session(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	status := http.StatusCreated
	if !created {
		status = http.StatusOK
	}
	NewResponse().Status(status).Header("Location", "/api/expenses/"+e.ID).JSON(e).Write(w)
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	e, err := s.svc.Expenses.Get(r.Context(), session(r), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	var in services.ExpenseUpdate
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	e, err := s.svc.Expenses.Update(r.Context(), session(r), mux.Vars(r)["id"], in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Expenses.Delete(r.Context(), session(r), mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}
	writeNoContent(w)
}
