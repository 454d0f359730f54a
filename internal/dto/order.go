package dto

import (
	"encoding/json"
	"time"

	"github.com/GlebRadaev/boostmarket/internal/domain"
	"github.com/GlebRadaev/boostmarket/internal/pricing"
)

// OrderRequestDTO is both the quote and the checkout body. Fields that do not apply to the
// chosen service are ignored.
type OrderRequestDTO struct {
	ServiceType  string         `json:"service_type" example:"RANK_BOOST"`
	CurrentRank  string         `json:"current_rank,omitempty" example:"GOLD_IV"`
	DesiredRank  string         `json:"desired_rank,omitempty" example:"PLATINUM_IV"`
	GamesCount   int            `json:"games_count,omitempty" example:"5"`
	CurrentLevel int            `json:"current_level,omitempty"`
	DesiredLevel int            `json:"desired_level,omitempty"`
	Champion     string         `json:"champion,omitempty"`
	Server       string         `json:"server,omitempty" example:"EUW"`
	Summoner     string         `json:"summoner,omitempty" example:"alice#EUW"`
	Options      domain.Options `json:"options"`
}

func (r OrderRequestDTO) Input() pricing.Input {
	return pricing.Input{
		ServiceType:  r.ServiceType,
		CurrentRank:  r.CurrentRank,
		DesiredRank:  r.DesiredRank,
		GamesCount:   r.GamesCount,
		CurrentLevel: r.CurrentLevel,
		DesiredLevel: r.DesiredLevel,
		Options:      r.Options,
	}
}

type QuoteResponseDTO struct {
	BasePrice  int64    `json:"base_price" example:"450000"`
	OptionFees int64    `json:"option_fees" example:"157500"`
	TotalPrice int64    `json:"total_price" example:"607500"`
	Breakdown  []string `json:"breakdown"`
	Valid      bool     `json:"valid"`
	Error      string   `json:"error,omitempty"`
}

func NewQuoteResponse(q pricing.Quote, err error) QuoteResponseDTO {
	resp := QuoteResponseDTO{
		BasePrice:  q.BasePrice,
		OptionFees: q.OptionFees,
		TotalPrice: q.TotalPrice,
		Breakdown:  q.Breakdown,
		Valid:      err == nil,
	}
	if err != nil {
		resp.Error = err.Error()
	}
	return resp
}

type OrderResponseDTO struct {
	ID          int             `json:"id" example:"17"`
	CustomerID  int             `json:"customer_id"`
	BoosterID   int             `json:"booster_id,omitempty"`
	ServiceType string          `json:"service_type" example:"RANK_BOOST"`
	Status      string          `json:"status" example:"PAID"`
	BasePrice   int64           `json:"base_price"`
	OptionFees  int64           `json:"option_fees"`
	TotalAmount int64           `json:"total_amount"`
	Details     json.RawMessage `json:"details" swaggertype:"object"`
	Options     domain.Options  `json:"options"`
	Server      string          `json:"server,omitempty"`
	Summoner    string          `json:"summoner,omitempty"`
	Released    bool            `json:"released"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func NewOrderResponse(o *domain.Order) OrderResponseDTO {
	details, err := domain.EncodeDetails(o.Details)
	if err != nil {
		details = []byte("{}")
	}
	return OrderResponseDTO{
		ID:          o.ID,
		CustomerID:  o.CustomerID,
		BoosterID:   o.BoosterID,
		ServiceType: o.ServiceType,
		Status:      o.Status,
		BasePrice:   o.BasePrice,
		OptionFees:  o.OptionFees,
		TotalAmount: o.TotalAmount,
		Details:     details,
		Options:     o.Options,
		Server:      o.Server,
		Summoner:    o.Summoner,
		Released:    o.Released,
		CreatedAt:   o.CreatedAt,
		UpdatedAt:   o.UpdatedAt,
	}
}

func NewOrdersResponse(orders []domain.Order) []OrderResponseDTO {
	resp := make([]OrderResponseDTO, 0, len(orders))
	for i := range orders {
		resp = append(resp, NewOrderResponse(&orders[i]))
	}
	return resp
}

type ReleaseResponseDTO struct {
	Order    OrderResponseDTO `json:"order"`
	Released bool             `json:"released"`
}
