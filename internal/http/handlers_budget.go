package http

import (
	"log/slog"
	"net/http"
	"strings"

	"tally/internal/core"
)

type setBudgetRequest struct {
	Amount string `json:"amount"`
}

func (s *Server) handleSetBudget(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)

	var req setBudgetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	budget, err := s.budgets.SetBudget(r.Context(), user.ID, req.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.invalidateUser(user.ID)
	writeJSON(w, http.StatusOK, map[string]string{
		"id":     budget.ID,
		"amount": core.FormatCents(budget.Amount.Cents),
	})
}

func (s *Server) handleBudgetStatus(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)

	accountID := strings.TrimSpace(r.URL.Query().Get("accountId"))
	if accountID == "" {
		writeError(w, r, core.Validationf("accountId query parameter is required"))
		return
	}

	key := budgetKey(user.ID, accountID)
	if cached, found := s.budgetCache.Get(key); found {
		slog.DebugContext(r.Context(), "Budget status cache hit", "user_id", user.ID, "account_id", accountID)
		writeJSON(w, http.StatusOK, newBudgetStatusJSON(cached))
		return
	}

	status, err := s.budgets.GetStatus(r.Context(), user.ID, accountID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.budgetCache.Set(key, *status)
	writeJSON(w, http.StatusOK, newBudgetStatusJSON(*status))
}
