package http

import (
	"log/slog"
	"net/http"

	"tally/internal/core"
	"tally/internal/services"
)

type createAccountRequest struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	Balance   string `json:"balance"`
	IsDefault bool   `json:"isDefault"`
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)

	var req createAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	account, err := s.accounts.CreateAccount(r.Context(), user.ID, services.CreateAccountInput{
		Name:      sanitizeInput(req.Name),
		Type:      core.AccountType(req.Type),
		Balance:   req.Balance,
		IsDefault: req.IsDefault,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.invalidateUser(user.ID)
	writeJSON(w, http.StatusCreated, newAccountJSON(*account))
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)
	key := accountsKey(user.ID)

	if cached, found := s.accountsCache.Get(key); found {
		slog.DebugContext(r.Context(), "Account list cache hit", "user_id", user.ID)
		writeJSON(w, http.StatusOK, newAccountListJSON(cached))
		return
	}

	accounts, err := s.accounts.List(r.Context(), user.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.accountsCache.Set(key, accounts)
	writeJSON(w, http.StatusOK, newAccountListJSON(accounts))
}

func (s *Server) handleSetDefaultAccount(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)
	accountID := r.PathValue("id")

	account, err := s.accounts.SetDefault(r.Context(), user.ID, accountID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.invalidateUser(user.ID)
	writeJSON(w, http.StatusOK, newAccountJSON(*account))
}
