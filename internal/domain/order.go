package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"
)

const (
	ServiceRankBoost  = "RANK_BOOST"
	ServicePromotion  = "PROMOTION"
	ServiceMastery    = "MASTERY"
	ServiceLeveling   = "LEVELING"
	ServiceNetWins    = "NET_WINS"
	ServicePlacements = "PLACEMENTS"
)

const (
	OrderPendingPayment = "PENDING_PAYMENT"
	OrderPaid           = "PAID"
	OrderApproved       = "APPROVED"
	OrderInProgress     = "IN_PROGRESS"
	OrderCompleted      = "COMPLETED"
	OrderRejected       = "REJECTED"
	OrderRefunded       = "REFUNDED"
	OrderDisputed       = "DISPUTED"
)

var orderTransitions = map[string][]string{
	OrderPendingPayment: {OrderPaid, OrderRejected, OrderDisputed},
	OrderPaid:           {OrderApproved, OrderRejected, OrderRefunded, OrderDisputed},
	OrderApproved:       {OrderInProgress, OrderRefunded, OrderDisputed},
	OrderInProgress:     {OrderCompleted, OrderRefunded, OrderDisputed},
	OrderDisputed:       {OrderCompleted, OrderRefunded},
}

func CanTransition(from, to string) bool {
	return slices.Contains(orderTransitions[from], to)
}

// StatesLeadingTo lists every status with an allowed edge into target.
func StatesLeadingTo(target string) []string {
	var from []string
	for _, s := range []string{OrderPendingPayment, OrderPaid, OrderApproved, OrderInProgress, OrderDisputed} {
		if CanTransition(s, target) {
			from = append(from, s)
		}
	}
	return from
}

// Options are the add-ons a customer picks on top of the base service.
type Options struct {
	FlashBoost     bool     `json:"flash_boost"`
	SpecificChamps []string `json:"specific_champs,omitempty"`
	Streaming      bool     `json:"streaming"`
	DuoQueue       bool     `json:"duo_queue"`
	PriorityLane   bool     `json:"priority_lane"`
}

type Order struct {
	ID          int
	CustomerID  int
	BoosterID   int
	ServiceType string
	Status      string
	BasePrice   int64
	OptionFees  int64
	TotalAmount int64
	Details     ServiceDetails
	Options     Options
	Server      string
	Summoner    string
	Released    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (o *Order) Claimed() bool {
	return o.BoosterID != 0
}

// ServiceDetails is the per-service payload of an order. The concrete type is fixed by the
// order's service type.
type ServiceDetails interface {
	ServiceType() string
}

type RankBoostDetails struct {
	CurrentRank string `json:"current_rank"`
	DesiredRank string `json:"desired_rank"`
}

func (RankBoostDetails) ServiceType() string { return ServiceRankBoost }

type GamesDetails struct {
	Service    string `json:"-"`
	PriorRank  string `json:"prior_rank,omitempty"`
	GamesCount int    `json:"games_count"`
}

func (d GamesDetails) ServiceType() string { return d.Service }

type LevelDetails struct {
	Service      string `json:"-"`
	Champion     string `json:"champion,omitempty"`
	CurrentLevel int    `json:"current_level"`
	DesiredLevel int    `json:"desired_level"`
}

func (d LevelDetails) ServiceType() string { return d.Service }

var ErrUnknownServiceType = errors.New("unknown service type")

func EncodeDetails(d ServiceDetails) ([]byte, error) {
	if d == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(d)
}

func DecodeDetails(serviceType string, raw []byte) (ServiceDetails, error) {
	switch serviceType {
	case ServiceRankBoost:
		var d RankBoostDetails
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("decode %s details: %w", serviceType, err)
		}
		return d, nil
	case ServicePromotion, ServiceNetWins, ServicePlacements:
		d := GamesDetails{Service: serviceType}
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("decode %s details: %w", serviceType, err)
		}
		return d, nil
	case ServiceMastery, ServiceLeveling:
		d := LevelDetails{Service: serviceType}
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("decode %s details: %w", serviceType, err)
		}
		return d, nil
	default:
		return nil, ErrUnknownServiceType
	}
}
