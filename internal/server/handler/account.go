package handler

import (
	"net/http"

	"github.com/alanyoungcy/b3stream/internal/domain"
)

// AccountHandler serves the static account summary.
type AccountHandler struct {
	account domain.Account
}

// NewAccountHandler creates an AccountHandler.
func NewAccountHandler(account domain.Account) *AccountHandler {
	return &AccountHandler{account: account}
}

// GetAccount returns the account summary.
// GET /api/v1/account
func (h *AccountHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.account)
}
