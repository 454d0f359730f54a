package dto

import (
	"time"

	"github.com/GlebRadaev/boostmarket/internal/domain"
)

type ApplicationRequestDTO struct {
	DisplayName string   `json:"display_name" example:"Faker Jr"`
	CurrentRank string   `json:"current_rank" example:"MASTER"`
	Services    []string `json:"services" example:"RANK_BOOST,NET_WINS"`
	ProofLinks  []string `json:"proof_links"`
	BankName    string   `json:"bank_name,omitempty"`
	BankAccount string   `json:"bank_account,omitempty"`
	BankHolder  string   `json:"bank_holder,omitempty"`
	PayoutCard  string   `json:"payout_card" example:"4111 1111 1111 1111"`
	SignedName  string   `json:"signed_name" example:"J. Doe"`
}

func (r ApplicationRequestDTO) Application() *domain.BoosterApplication {
	return &domain.BoosterApplication{
		DisplayName: r.DisplayName,
		CurrentRank: r.CurrentRank,
		Services:    r.Services,
		ProofLinks:  r.ProofLinks,
		BankName:    r.BankName,
		BankAccount: r.BankAccount,
		BankHolder:  r.BankHolder,
		PayoutCard:  r.PayoutCard,
		SignedName:  r.SignedName,
	}
}

type ApplicationResponseDTO struct {
	ID           int       `json:"id"`
	UserID       int       `json:"user_id"`
	DisplayName  string    `json:"display_name"`
	CurrentRank  string    `json:"current_rank"`
	Services     []string  `json:"services"`
	ProofLinks   []string  `json:"proof_links"`
	Status       string    `json:"status" example:"pending"`
	Level        string    `json:"level" example:"new"`
	SignedAt     time.Time `json:"signed_at"`
	RejectReason string    `json:"reject_reason,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewApplicationResponse leaves the payout details out of API responses.
func NewApplicationResponse(a *domain.BoosterApplication) ApplicationResponseDTO {
	return ApplicationResponseDTO{
		ID:           a.ID,
		UserID:       a.UserID,
		DisplayName:  a.DisplayName,
		CurrentRank:  a.CurrentRank,
		Services:     a.Services,
		ProofLinks:   a.ProofLinks,
		Status:       a.Status,
		Level:        a.Level,
		SignedAt:     a.SignedAt,
		RejectReason: a.RejectReason,
		CreatedAt:    a.CreatedAt,
	}
}

type RejectRequestDTO struct {
	Reason string `json:"reason" example:"proof links are private"`
}

type LevelRequestDTO struct {
	Level string `json:"level" example:"trusted"`
}
