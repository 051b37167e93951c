package http

import (
	"errors"
	"net/http"
	"time"

	"fintrack/internal/achievements"
	"fintrack/internal/core"
	"fintrack/internal/services"
)

type transactionResponse struct {
	ID          string `json:"id"`
	Kind        string `json:"kind"`
	Date        string `json:"date"`
	Description string `json:"description"`
	Amount      string `json:"amount"`
	Category    string `json:"category"`
}

func toTransactionResponse(t core.Transaction) transactionResponse {
	return transactionResponse{
		ID:          t.ID,
		Kind:        string(t.Kind),
		Date:        t.Date.Format("2006-01-02"),
		Description: t.Description,
		Amount:      t.Amount.String(),
		Category:    t.Category,
	}
}

type createTransactionRequest struct {
	Kind        string `json:"kind" validate:"required,oneof=expense income"`
	Date        string `json:"date" validate:"required,dateonly"`
	Description string `json:"description" validate:"required,notblank,max=200"`
	Amount      string `json:"amount" validate:"required"`
	Category    string `json:"category" validate:"required,notblank"`
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req createTransactionRequest
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

	t, err := s.ledger.AddTransaction(r.Context(), userID(r), core.Transaction{
		Kind:        core.Kind(req.Kind),
		Date:        core.Date{Time: date},
		Description: req.Description,
		Amount:      core.Money{Cents: cents},
		Category:    req.Category,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionResponse(t))
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	kind := core.Kind(r.URL.Query().Get("kind"))
	if kind != "" {
		if err := kind.Validate(); err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
	}
	txs, err := s.ledger.Transactions(r.Context(), userID(r), kind)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]transactionResponse, 0, len(txs))
	for _, t := range txs {
		out = append(out, toTransactionResponse(t))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.DeleteTransaction(r.Context(), userID(r), r.PathValue("id")); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

type categoriesResponse struct {
	Expense []string `json:"expense"`
	Income  []string `json:"income"`
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	expense, err := s.ledger.Categories(r.Context(), userID(r), core.Expense)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	income, err := s.ledger.Categories(r.Context(), userID(r), core.Income)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, categoriesResponse{Expense: expense, Income: income})
}

type createCategoryRequest struct {
	Kind string `json:"kind" validate:"required,oneof=expense income"`
	Name string `json:"name" validate:"required,notblank,max=50"`
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req createCategoryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, validationMessage(err))
		return
	}
	if err := s.ledger.AddCategory(r.Context(), userID(r), core.Kind(req.Kind), req.Name); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, nil)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	kind := core.Kind(r.PathValue("kind"))
	if err := kind.Validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err := s.ledger.DeleteCategory(r.Context(), userID(r), kind, r.PathValue("name")); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

type budgetResponse struct {
	ID       string `json:"id"`
	Category string `json:"category"`
	Amount   string `json:"amount"`
	Period   string `json:"period"`
}

func toBudgetResponse(b core.Budget) budgetResponse {
	return budgetResponse{
		ID:       b.ID,
		Category: b.Category,
		Amount:   b.Amount.String(),
		Period:   string(b.Period),
	}
}

type budgetRequest struct {
	Category string `json:"category" validate:"required,notblank"`
	Amount   string `json:"amount" validate:"required"`
	Period   string `json:"period" validate:"required,oneof=monthly yearly"`
}

type duplicateBudgetResponse struct {
	Error    string         `json:"error"`
	Existing budgetResponse `json:"existing"`
}

func (s *Server) handleCreateBudget(w http.ResponseWriter, r *http.Request) {
	var req budgetRequest
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

	b, err := s.ledger.CreateBudget(r.Context(), userID(r), core.Budget{
		Category: req.Category,
		Amount:   core.Money{Cents: cents},
		Period:   core.Period(req.Period),
	})
	if errors.Is(err, services.ErrDuplicateBudget) {
		writeJSON(w, http.StatusConflict, duplicateBudgetResponse{
			Error:    err.Error(),
			Existing: toBudgetResponse(b),
		})
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBudgetResponse(b))
}

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	budgets, err := s.ledger.Budgets(r.Context(), userID(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]budgetResponse, 0, len(budgets))
	for _, b := range budgets {
		out = append(out, toBudgetResponse(b))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleUpdateBudget(w http.ResponseWriter, r *http.Request) {
	var req budgetRequest
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

	b := core.Budget{
		ID:       r.PathValue("id"),
		Category: req.Category,
		Amount:   core.Money{Cents: cents},
		Period:   core.Period(req.Period),
	}
	if err := s.ledger.UpdateBudget(r.Context(), userID(r), b); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBudgetResponse(b))
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.DeleteBudget(r.Context(), userID(r), r.PathValue("id")); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

type summaryResponse struct {
	Year        int     `json:"year"`
	Month       int     `json:"month"`
	Income      string  `json:"income"`
	Expense     string  `json:"expense"`
	Net         string  `json:"net"`
	SavingsRate float64 `json:"savings_rate"`
}

type categoryAmountResponse struct {
	Name    string  `json:"name"`
	Amount  string  `json:"amount"`
	Percent float64 `json:"percent"`
}

type budgetStatusResponse struct {
	Budget     budgetResponse `json:"budget"`
	Spent      string         `json:"spent"`
	Remaining  string         `json:"remaining"`
	Percent    float64        `json:"percent"`
	OverBudget bool           `json:"over_budget"`
}

type dashboardResponse struct {
	Balance   string                   `json:"balance"`
	Summary   summaryResponse          `json:"summary"`
	Breakdown []categoryAmountResponse `json:"breakdown"`
	Budgets   []budgetStatusResponse   `json:"budgets"`
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := s.ledger.Dashboard(r.Context(), userID(r), time.Now().UTC())
	if err != nil {
		s.fail(w, r, err)
		return
	}

	resp := dashboardResponse{
		Balance: d.Balance.String(),
		Summary: summaryResponse{
			Year:        d.Summary.Year,
			Month:       d.Summary.Month,
			Income:      d.Summary.Income.String(),
			Expense:     d.Summary.Expense.String(),
			Net:         d.Summary.Net.String(),
			SavingsRate: d.Summary.SavingsRate,
		},
		Breakdown: make([]categoryAmountResponse, 0, len(d.Breakdown)),
		Budgets:   make([]budgetStatusResponse, 0, len(d.Budgets)),
	}
	for _, c := range d.Breakdown {
		resp.Breakdown = append(resp.Breakdown, categoryAmountResponse{
			Name: c.Name, Amount: c.Amount.String(), Percent: c.Percent,
		})
	}
	for _, b := range d.Budgets {
		resp.Budgets = append(resp.Budgets, budgetStatusResponse{
			Budget:     toBudgetResponse(b.Budget),
			Spent:      b.Spent.String(),
			Remaining:  b.Remaining.String(),
			Percent:    b.Percent,
			OverBudget: b.OverBudget,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

type awardResponse struct {
	AchievementID string `json:"achievement_id"`
	Title         string `json:"title"`
	Points        int    `json:"points"`
	DateAwarded   string `json:"date_awarded"`
}

type achievementsResponse struct {
	Points int             `json:"points"`
	Streak int             `json:"streak"`
	Awards []awardResponse `json:"awards"`
}

func (s *Server) handleAchievements(w http.ResponseWriter, r *http.Request) {
	rec, points, err := s.ledger.Achievements(r.Context(), userID(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAchievementsResponse(rec, points))
}

func toAchievementsResponse(rec achievements.Record, points int) achievementsResponse {
	resp := achievementsResponse{
		Points: points,
		Streak: rec.Streak,
		Awards: make([]awardResponse, 0, len(rec.Awards)),
	}
	for _, a := range rec.Awards {
		resp.Awards = append(resp.Awards, awardResponse{
			AchievementID: a.AchievementID,
			Title:         a.Title,
			Points:        a.Points,
			DateAwarded:   a.DateAwarded.Format("2006-01-02"),
		})
	}
	return resp
}
