package http

import (
	"net/http"
	"time"

	"fintrack/internal/core"
)

// Wallet membership is keyed by email, so every wallet handler resolves the
// acting user's address first.
func (s *Server) actorEmail(r *http.Request) (string, error) {
	u, err := s.accounts.User(r.Context(), userID(r))
	if err != nil {
		return "", err
	}
	return u.Email, nil
}

type walletExpenseResponse struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Amount      string `json:"amount"`
	Category    string `json:"category"`
	PaidBy      string `json:"paid_by"`
	Date        string `json:"date"`
}

type walletResponse struct {
	ID          string                  `json:"id"`
	Name        string                  `json:"name"`
	Description string                  `json:"description"`
	CreatedBy   string                  `json:"created_by"`
	Members     []string                `json:"members"`
	MemberNames map[string]string       `json:"member_names,omitempty"`
	Expenses    []walletExpenseResponse `json:"expenses"`
	TotalSpent  string                  `json:"total_spent"`
	CreatedAt   string                  `json:"created_at"`
}

func toWalletResponse(w core.SharedWallet, names map[string]string) walletResponse {
	resp := walletResponse{
		ID:          w.ID,
		Name:        w.Name,
		Description: w.Description,
		CreatedBy:   w.CreatedBy,
		Members:     w.Members,
		MemberNames: names,
		Expenses:    make([]walletExpenseResponse, 0, len(w.Expenses)),
		TotalSpent:  w.TotalSpent.String(),
		CreatedAt:   w.CreatedAt.Format(time.RFC3339),
	}
	for _, e := range w.Expenses {
		resp.Expenses = append(resp.Expenses, walletExpenseResponse{
			ID:          e.ID,
			Description: e.Description,
			Amount:      e.Amount.String(),
			Category:    e.Category,
			PaidBy:      e.PaidBy,
			Date:        e.Date.Format("2006-01-02"),
		})
	}
	return resp
}

type createWalletRequest struct {
	Name        string `json:"name" validate:"required,notblank,max=100"`
	Description string `json:"description" validate:"max=500"`
}

func (s *Server) handleCreateWallet(w http.ResponseWriter, r *http.Request) {
	var req createWalletRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, validationMessage(err))
		return
	}
	email, err := s.actorEmail(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	wallet, err := s.wallets.CreateWallet(r.Context(), req.Name, req.Description, email)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toWalletResponse(wallet, nil))
}

func (s *Server) handleListWallets(w http.ResponseWriter, r *http.Request) {
	email, err := s.actorEmail(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	wallets, err := s.wallets.Wallets(r.Context(), email)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]walletResponse, 0, len(wallets))
	for _, wl := range wallets {
		out = append(out, toWalletResponse(wl, nil))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetWallet(w http.ResponseWriter, r *http.Request) {
	email, err := s.actorEmail(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	wallet, err := s.wallets.Wallet(r.Context(), r.PathValue("id"), email)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	names := s.wallets.MemberNames(r.Context(), wallet)
	writeJSON(w, http.StatusOK, toWalletResponse(wallet, names))
}

func (s *Server) handleDeleteWallet(w http.ResponseWriter, r *http.Request) {
	email, err := s.actorEmail(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.wallets.DeleteWallet(r.Context(), r.PathValue("id"), email); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

type inviteMemberRequest struct {
	Email string `json:"email" validate:"required,email"`
}

func (s *Server) handleInviteMember(w http.ResponseWriter, r *http.Request) {
	var req inviteMemberRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, validationMessage(err))
		return
	}
	email, err := s.actorEmail(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.wallets.InviteMember(r.Context(), r.PathValue("id"), email, req.Email); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

type addWalletExpenseRequest struct {
	Description string `json:"description" validate:"required,notblank,max=200"`
	Amount      string `json:"amount" validate:"required"`
	Category    string `json:"category" validate:"required,notblank"`
	Date        string `json:"date" validate:"required,dateonly"`
	PaidBy      string `json:"paid_by" validate:"omitempty,email"`
}

func (s *Server) handleAddWalletExpense(w http.ResponseWriter, r *http.Request) {
	var req addWalletExpenseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, validationMessage(err))
		return
	}
	cents, err := core.ParseDecimalToCents(req.Amount)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid amount")
		return
	}
	date, _ := time.Parse("2006-01-02", req.Date)

	email, err := s.actorEmail(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	exp, err := s.wallets.AddExpense(r.Context(), r.PathValue("id"), email, core.WalletExpense{
		Description: req.Description,
		Amount:      core.Money{Cents: cents},
		Category:    req.Category,
		PaidBy:      req.PaidBy,
		Date:        core.Date{Time: date},
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, walletExpenseResponse{
		ID:          exp.ID,
		Description: exp.Description,
		Amount:      exp.Amount.String(),
		Category:    exp.Category,
		PaidBy:      exp.PaidBy,
		Date:        exp.Date.Format("2006-01-02"),
	})
}

func (s *Server) handleDeleteWalletExpense(w http.ResponseWriter, r *http.Request) {
	email, err := s.actorEmail(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.wallets.DeleteExpense(r.Context(), r.PathValue("id"), email, r.PathValue("expID")); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}
