package http

import (
	"net/http"
	"strconv"
	"strings"

	"tally/internal/core"
	"tally/internal/services"
	"tally/internal/storage"
)

type splitRequest struct {
	Name   string `json:"name"`
	Amount string `json:"amount"`
	Paid   bool   `json:"paid"`
}

type transactionRequest struct {
	Type              string         `json:"type"`
	Amount            string         `json:"amount"`
	AccountID         string         `json:"accountId"`
	Category          string         `json:"category"`
	Date              string         `json:"date"`
	Description       string         `json:"description"`
	IsRecurring       bool           `json:"isRecurring"`
	RecurringInterval string         `json:"recurringInterval"`
	Splits            []splitRequest `json:"splits"`
}

func (req transactionRequest) toInput() services.TransactionInput {
	in := services.TransactionInput{
		Type:              core.TransactionType(req.Type),
		Amount:            req.Amount,
		AccountID:         req.AccountID,
		Category:          req.Category,
		Date:              req.Date,
		Description:       sanitizeInput(req.Description),
		IsRecurring:       req.IsRecurring,
		RecurringInterval: core.RecurringInterval(req.RecurringInterval),
	}
	for _, sp := range req.Splits {
		in.Splits = append(in.Splits, services.SplitInput{
			Name:   sanitizeInput(sp.Name),
			Amount: sp.Amount,
			Paid:   sp.Paid,
		})
	}
	return in
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)

	var req transactionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	t, err := s.transactions.Create(r.Context(), user.ID, req.toInput())
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.invalidateUser(user.ID)
	writeJSON(w, http.StatusCreated, newTransactionJSON(*t))
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)
	id := r.PathValue("id")

	var req transactionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	t, err := s.transactions.Update(r.Context(), user.ID, id, req.toInput())
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.invalidateUser(user.ID)
	writeJSON(w, http.StatusOK, newTransactionJSON(*t))
}

type deleteTransactionsRequest struct {
	IDs []string `json:"ids"`
}

func (s *Server) handleDeleteTransactions(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)

	var req deleteTransactionsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	if err := s.transactions.Delete(r.Context(), user.ID, req.IDs); err != nil {
		writeError(w, r, err)
		return
	}

	s.invalidateUser(user.ID)
	writeJSON(w, http.StatusOK, map[string]int{"deleted": len(req.IDs)})
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)

	t, err := s.transactions.Get(r.Context(), user.ID, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newTransactionJSON(*t))
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)

	filter := storage.TransactionFilter{
		AccountID: strings.TrimSpace(r.URL.Query().Get("accountId")),
		Type:      core.TransactionType(strings.TrimSpace(r.URL.Query().Get("type"))),
		Category:  strings.TrimSpace(r.URL.Query().Get("category")),
	}
	if v := strings.TrimSpace(r.URL.Query().Get("recurring")); v != "" {
		recurring, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, r, core.Validationf("invalid recurring filter %q", v))
			return
		}
		filter.IsRecurring = &recurring
	}

	items, err := s.transactions.List(r.Context(), user.ID, filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newTransactionListJSON(items))
}

func (s *Server) handleMarkSplitPaid(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)

	split, err := s.transactions.MarkSplitPaid(r.Context(), user.ID, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.invalidateUser(user.ID)
	writeJSON(w, http.StatusOK, newSplitJSON(*split))
}
