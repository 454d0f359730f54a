package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/GlebRadaev/boostmarket/internal/domain"
	"github.com/GlebRadaev/boostmarket/internal/dto"
	"github.com/GlebRadaev/boostmarket/internal/service/walletservice"
	"github.com/GlebRadaev/boostmarket/pkg/auth"
	"github.com/GlebRadaev/boostmarket/pkg/utils"
)

type Service interface {
	GetBalance(ctx context.Context, userID int) (*domain.Wallet, error)
	GetTransactions(ctx context.Context, userID int) ([]domain.Transaction, error)
	CreateDepositRequest(ctx context.Context, userID int, amount int64) (*domain.DepositRequest, error)
	ConfirmDeposit(ctx context.Context, txID string) (*domain.Transaction, error)
	RejectPending(ctx context.Context, txID string) (*domain.Transaction, error)
	VerifyLedger(ctx context.Context, userID int) (*domain.LedgerAudit, error)
}

type WalletHandler struct {
	walletService Service
}

func New(walletService Service) *WalletHandler {
	return &WalletHandler{
		walletService: walletService,
	}
}

func respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, walletservice.ErrInvalidAmount):
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, walletservice.ErrTransactionNotFound), errors.Is(err, walletservice.ErrUserNotFound):
		utils.RespondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, walletservice.ErrAlreadyProcessed), errors.Is(err, walletservice.ErrNotDeposit):
		utils.RespondWithError(w, http.StatusConflict, err.Error())
	default:
		utils.RespondWithError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// GetWallet godoc
//
//	@Summary	Get the wallet balance
//	@Tags		Wallet
//	@Produce	json
//	@Security	BearerAuth
//	@Success	200	{object}	dto.WalletResponseDTO
//	@Failure	401	{object}	utils.Response	"User not authorized"
//	@Failure	500	{object}	utils.Response	"Internal server error"
//	@Router		/api/wallet [get]
func (h *WalletHandler) GetWallet(w http.ResponseWriter, r *http.Request) {
	userID, _, _ := auth.FromContext(r.Context())
	wallet, err := h.walletService.GetBalance(r.Context(), userID)
	if err != nil {
		respondError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, dto.WalletResponseDTO{
		Balance: wallet.Balance,
		Pending: wallet.Pending,
	})
}

// GetTransactions godoc
//
//	@Summary	List the wallet's ledger entries, newest first
//	@Tags		Wallet
//	@Produce	json
//	@Security	BearerAuth
//	@Success	200	{array}		dto.TransactionResponseDTO
//	@Failure	500	{object}	utils.Response	"Internal server error"
//	@Router		/api/wallet/transactions [get]
func (h *WalletHandler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	userID, _, _ := auth.FromContext(r.Context())
	txs, err := h.walletService.GetTransactions(r.Context(), userID)
	if err != nil {
		respondError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, dto.NewTransactionsResponse(txs))
}

// CreateDeposit godoc
//
//	@Summary		Request a bank transfer top-up
//	@Description	Creates a pending deposit and returns the content to put in the transfer
//	@Tags			Wallet
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		dto.DepositRequestDTO	true	"Amount"
//	@Success		201		{object}	dto.DepositResponseDTO
//	@Failure		400		{object}	utils.Response	"Invalid amount"
//	@Router			/api/wallet/deposits [post]
func (h *WalletHandler) CreateDeposit(w http.ResponseWriter, r *http.Request) {
	var req dto.DepositRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	userID, _, _ := auth.FromContext(r.Context())
	deposit, err := h.walletService.CreateDepositRequest(r.Context(), userID, req.Amount)
	if err != nil {
		respondError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, dto.DepositResponseDTO{
		Transaction: dto.NewTransactionResponse(deposit.Transaction),
		Code:        deposit.Code,
		Content:     deposit.Content,
	})
}

// ConfirmTransaction godoc
//
//	@Summary	Confirm a pending deposit by hand
//	@Tags		Admin
//	@Produce	json
//	@Security	BearerAuth
//	@Param		id	path		string	true	"Transaction id"
//	@Success	200	{object}	dto.TransactionResponseDTO
//	@Failure	404	{object}	utils.Response	"Transaction not found"
//	@Failure	409	{object}	utils.Response	"Already processed"
//	@Router		/api/admin/transactions/{id}/confirm [post]
func (h *WalletHandler) ConfirmTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := h.walletService.ConfirmDeposit(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, dto.NewTransactionResponse(tx))
}

// RejectTransaction godoc
//
//	@Summary	Reject a pending deposit
//	@Tags		Admin
//	@Produce	json
//	@Security	BearerAuth
//	@Param		id	path		string	true	"Transaction id"
//	@Success	200	{object}	dto.TransactionResponseDTO
//	@Failure	404	{object}	utils.Response	"Transaction not found"
//	@Failure	409	{object}	utils.Response	"Already processed"
//	@Router		/api/admin/transactions/{id}/reject [post]
func (h *WalletHandler) RejectTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := h.walletService.RejectPending(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, dto.NewTransactionResponse(tx))
}

// GetLedger godoc
//
//	@Summary	Check a user's balance against the ledger
//	@Tags		Admin
//	@Produce	json
//	@Security	BearerAuth
//	@Param		id	path		int	true	"User id"
//	@Success	200	{object}	dto.LedgerAuditResponseDTO
//	@Failure	404	{object}	utils.Response	"User not found"
//	@Router		/api/admin/users/{id}/ledger [get]
func (h *WalletHandler) GetLedger(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid user id")
		return
	}
	audit, err := h.walletService.VerifyLedger(r.Context(), userID)
	if err != nil {
		respondError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, dto.LedgerAuditResponseDTO{
		UserID:     audit.UserID,
		Balance:    audit.Balance,
		LedgerSum:  audit.LedgerSum,
		Consistent: audit.Consistent,
	})
}
