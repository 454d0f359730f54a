package dto

import (
	"time"

	"github.com/GlebRadaev/boostmarket/internal/domain"
)

type WalletResponseDTO struct {
	Balance int64 `json:"balance" example:"1500000"`
	Pending int64 `json:"pending" example:"100000"`
}

type TransactionResponseDTO struct {
	ID           string    `json:"id" example:"3f1c9a52-7d4e-4b8e-9c1a-2b6f0e1a9f3e"`
	OrderID      int       `json:"order_id,omitempty"`
	Type         string    `json:"type" example:"DEPOSIT"`
	Amount       int64     `json:"amount" example:"100000"`
	BalanceAfter int64     `json:"balance_after" example:"1600000"`
	Status       string    `json:"status" example:"SUCCESS"`
	Description  string    `json:"description"`
	CreatedAt    time.Time `json:"created_at"`
}

func NewTransactionResponse(tx *domain.Transaction) TransactionResponseDTO {
	return TransactionResponseDTO{
		ID:           tx.ID,
		OrderID:      tx.OrderID,
		Type:         tx.Type,
		Amount:       tx.Amount,
		BalanceAfter: tx.BalanceAfter,
		Status:       tx.Status,
		Description:  tx.Description,
		CreatedAt:    tx.CreatedAt,
	}
}

func NewTransactionsResponse(txs []domain.Transaction) []TransactionResponseDTO {
	resp := make([]TransactionResponseDTO, 0, len(txs))
	for i := range txs {
		resp = append(resp, NewTransactionResponse(&txs[i]))
	}
	return resp
}

type DepositRequestDTO struct {
	Amount int64 `json:"amount" example:"100000"`
}

type DepositResponseDTO struct {
	Transaction TransactionResponseDTO `json:"transaction"`
	Code        string                 `json:"code" example:"1A9F3E"`
	Content     string                 `json:"content" example:"NAP ALICE 1A9F3E"`
}

type LedgerAuditResponseDTO struct {
	UserID     int   `json:"user_id"`
	Balance    int64 `json:"balance"`
	LedgerSum  int64 `json:"ledger_sum"`
	Consistent bool  `json:"consistent"`
}
