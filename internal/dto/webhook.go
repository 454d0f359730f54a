package dto

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/GlebRadaev/boostmarket/internal/domain"
)

// ProviderID accepts the notification id as a JSON string or number.
type ProviderID string

func (p *ProviderID) UnmarshalJSON(data []byte) error {
	if bytes.HasPrefix(data, []byte(`"`)) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = ProviderID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*p = ProviderID(n.String())
	return nil
}

type BankNotificationDTO struct {
	ID             ProviderID `json:"id" swaggertype:"string" example:"92704"`
	TransferType   string     `json:"transferType" example:"in"`
	TransferAmount int64      `json:"transferAmount" example:"100000"`
	Content        string     `json:"content" example:"NAP ALICE 1A9F3E"`
	Code           string     `json:"code,omitempty"`
	ReferenceCode  string     `json:"referenceCode,omitempty" example:"FT24011234567"`
}

func (n BankNotificationDTO) Notification() domain.BankNotification {
	return domain.BankNotification{
		ProviderID: string(n.ID),
		Direction:  n.TransferType,
		Amount:     n.TransferAmount,
		Content:    n.Content,
		Code:       n.Code,
		Reference:  n.ReferenceCode,
	}
}

type WebhookResponseDTO struct {
	Success bool   `json:"success"`
	Outcome string `json:"outcome,omitempty" example:"processed"`
}

type WebhookEventResponseDTO struct {
	ID            int       `json:"id"`
	ProviderID    string    `json:"provider_id"`
	Direction     string    `json:"direction"`
	Amount        int64     `json:"amount"`
	Content       string    `json:"content"`
	Reference     string    `json:"reference,omitempty"`
	Status        string    `json:"status"`
	Reason        string    `json:"reason,omitempty"`
	UserID        int       `json:"user_id,omitempty"`
	TransactionID string    `json:"transaction_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

func NewWebhookEventsResponse(events []domain.WebhookEvent) []WebhookEventResponseDTO {
	resp := make([]WebhookEventResponseDTO, 0, len(events))
	for _, e := range events {
		resp = append(resp, WebhookEventResponseDTO{
			ID:            e.ID,
			ProviderID:    e.ProviderID,
			Direction:     e.Direction,
			Amount:        e.Amount,
			Content:       e.Content,
			Reference:     e.Reference,
			Status:        e.Status,
			Reason:        e.Reason,
			UserID:        e.UserID,
			TransactionID: e.TransactionID,
			CreatedAt:     e.CreatedAt,
		})
	}
	return resp
}
