// Package pricing turns a service selection into an authoritative price. The engine is pure:
// the same Calculate backs both the live quote shown to customers and the amount charged.
package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/GlebRadaev/boostmarket/internal/domain"
)

const (
	defaultPromotionGames = 5
	maxGames              = 50
	maxMasteryLevel       = 7
	maxAccountLevel       = 10000

	// Bounds on the price list keep every capped order well inside int64.
	maxPct    = 1000
	maxAmount = 1_000_000_000_000
)

var (
	ErrUnknownService    = errors.New("unknown service type")
	ErrRankNotIncreasing = errors.New("desired rank must be higher than current rank")
	ErrInvalidGames      = errors.New("games count out of range")
	ErrInvalidLevels     = errors.New("desired level must be higher than current level")
	ErrLevelOutOfRange   = errors.New("desired level is above the maximum")
	ErrZeroPrice         = errors.New("order has no billable work")
)

// Config is the immutable price list of one deployment. Percentages are whole points.
type Config struct {
	FlashBoostPct    int64
	DuoQueuePct      int64
	SpecificChampPct int64
	PriorityLanePct  int64
	StreamingFee     int64

	PlacementGameRate int64
	NetWinGameRate    int64
	PromotionGameRate int64
	MasteryLevelRate  int64
	LevelingRate      int64
	MaxAccountLevel   int

	Prices PriceTable
}

func DefaultConfig() Config {
	return Config{
		FlashBoostPct:     35,
		DuoQueuePct:       50,
		SpecificChampPct:  30,
		PriorityLanePct:   5,
		StreamingFee:      50000,
		PlacementGameRate: 30000,
		NetWinGameRate:    40000,
		PromotionGameRate: 35000,
		MasteryLevelRate:  60000,
		LevelingRate:      8000,
		MaxAccountLevel:   500,
		Prices:            DefaultPriceTable(),
	}
}

func (c Config) Validate() error {
	for name, pct := range map[string]int64{
		"flash boost":       c.FlashBoostPct,
		"duo queue":         c.DuoQueuePct,
		"specific champion": c.SpecificChampPct,
		"priority lane":     c.PriorityLanePct,
	} {
		if pct < 0 || pct > maxPct {
			return fmt.Errorf("%s must be between 0 and %d percent", name, maxPct)
		}
	}
	for name, v := range map[string]int64{
		"streaming fee":  c.StreamingFee,
		"placement rate": c.PlacementGameRate,
		"net win rate":   c.NetWinGameRate,
		"promotion rate": c.PromotionGameRate,
		"mastery rate":   c.MasteryLevelRate,
		"leveling rate":  c.LevelingRate,
	} {
		if v < 0 || v > maxAmount {
			return fmt.Errorf("%s must be between 0 and %d", name, maxAmount)
		}
	}
	if c.MaxAccountLevel < 1 || c.MaxAccountLevel > maxAccountLevel {
		return fmt.Errorf("max account level must be between 1 and %d", maxAccountLevel)
	}
	return c.Prices.Validate()
}

type Input struct {
	ServiceType  string
	CurrentRank  string
	DesiredRank  string
	GamesCount   int
	CurrentLevel int
	DesiredLevel int
	Options      domain.Options
}

type Quote struct {
	BasePrice  int64
	OptionFees int64
	TotalPrice int64
	Breakdown  []string
}

type Engine struct {
	cfg Config
}

func New(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pricing config: %w", err)
	}
	cfg.Prices = cfg.Prices.clone()
	return &Engine{cfg: cfg}, nil
}

// PriceOf returns the anchor for a rank key; unknown keys price at zero.
func (e *Engine) PriceOf(key string) int64 {
	r, err := ParseRank(key)
	if err != nil {
		return 0
	}
	return e.cfg.Prices[r.Key()]
}

// Calculate never fails and never returns negative amounts. Use Validate before charging.
func (e *Engine) Calculate(in Input) Quote {
	var q Quote

	base := e.basePrice(in, &q.Breakdown)
	multiplier := decimal.NewFromInt(1)
	for _, opt := range e.enabledOptions(in.Options) {
		multiplier = multiplier.Add(decimal.New(opt.pct, -2))
		q.Breakdown = append(q.Breakdown, fmt.Sprintf("option %s: +%d%%", opt.name, opt.pct))
	}
	q.Breakdown = append(q.Breakdown, "multiplier: x"+multiplier.String())

	var flat int64
	if in.Options.Streaming {
		flat = e.cfg.StreamingFee
		q.Breakdown = append(q.Breakdown, fmt.Sprintf("streaming fee: +%d", flat))
	}

	total := decimal.NewFromInt(base).Mul(multiplier).Add(decimal.NewFromInt(flat)).Ceil().IntPart()
	q.BasePrice = base
	q.TotalPrice = total
	q.OptionFees = total - base
	q.Breakdown = append(q.Breakdown, fmt.Sprintf("total: ceil(%d x %s + %d) = %d", base, multiplier.String(), flat, total))
	return q
}

type option struct {
	name string
	pct  int64
}

func (e *Engine) enabledOptions(o domain.Options) []option {
	var opts []option
	if o.FlashBoost {
		opts = append(opts, option{"flash_boost", e.cfg.FlashBoostPct})
	}
	if o.DuoQueue {
		opts = append(opts, option{"duo_queue", e.cfg.DuoQueuePct})
	}
	if len(o.SpecificChamps) > 0 {
		opts = append(opts, option{"specific_champs", e.cfg.SpecificChampPct})
	}
	if o.PriorityLane {
		opts = append(opts, option{"priority_lane", e.cfg.PriorityLanePct})
	}
	return opts
}

func (e *Engine) basePrice(in Input, trace *[]string) int64 {
	switch in.ServiceType {
	case domain.ServiceRankBoost:
		from, to := e.PriceOf(in.CurrentRank), e.PriceOf(in.DesiredRank)
		base := max(0, to-from)
		*trace = append(*trace, fmt.Sprintf("base: %s (%d) -> %s (%d) = %d", in.CurrentRank, from, in.DesiredRank, to, base))
		return base

	case domain.ServicePlacements, domain.ServiceNetWins, domain.ServicePromotion:
		rate := e.gameRate(in.ServiceType)
		games := in.GamesCount
		if in.ServiceType == domain.ServicePromotion && games == 0 {
			games = defaultPromotionGames
		}
		games = min(max(0, games), maxGames)
		mult := decimal.NewFromInt(1)
		if r, err := ParseRank(in.CurrentRank); err == nil {
			mult = TierMultiplier(r.Tier)
		}
		base := decimal.NewFromInt(int64(games)).Mul(decimal.NewFromInt(rate)).Mul(mult).Ceil().IntPart()
		*trace = append(*trace, fmt.Sprintf("base: %d games x %d x tier %s = %d", games, rate, mult.String(), base))
		return base

	case domain.ServiceMastery, domain.ServiceLeveling:
		rate := e.cfg.MasteryLevelRate
		if in.ServiceType == domain.ServiceLeveling {
			rate = e.cfg.LevelingRate
		}
		current := min(max(0, in.CurrentLevel), e.levelCap(in.ServiceType))
		desired := min(max(0, in.DesiredLevel), e.levelCap(in.ServiceType))
		levels := int64(max(0, desired-current))
		base := decimal.NewFromInt(levels).Mul(decimal.NewFromInt(rate)).IntPart()
		*trace = append(*trace, fmt.Sprintf("base: %d levels x %d = %d", levels, rate, base))
		return base

	default:
		*trace = append(*trace, fmt.Sprintf("base: unknown service %q = 0", in.ServiceType))
		return 0
	}
}

func (e *Engine) levelCap(serviceType string) int {
	if serviceType == domain.ServiceMastery {
		return maxMasteryLevel
	}
	return e.cfg.MaxAccountLevel
}

func (e *Engine) gameRate(serviceType string) int64 {
	switch serviceType {
	case domain.ServiceNetWins:
		return e.cfg.NetWinGameRate
	case domain.ServicePromotion:
		return e.cfg.PromotionGameRate
	default:
		return e.cfg.PlacementGameRate
	}
}

// Validate rejects selections that Calculate would silently price at zero or from an unknown
// anchor.
func (e *Engine) Validate(in Input) error {
	switch in.ServiceType {
	case domain.ServiceRankBoost:
		current, err := ParseRank(in.CurrentRank)
		if err != nil {
			return err
		}
		desired, err := ParseRank(in.DesiredRank)
		if err != nil {
			return err
		}
		if !current.Less(desired) {
			return ErrRankNotIncreasing
		}
	case domain.ServicePlacements, domain.ServiceNetWins, domain.ServicePromotion:
		if in.CurrentRank != "" {
			if _, err := ParseRank(in.CurrentRank); err != nil {
				return err
			}
		}
		minGames := 1
		if in.ServiceType == domain.ServicePromotion {
			minGames = 0
		}
		if in.GamesCount < minGames || in.GamesCount > maxGames {
			return ErrInvalidGames
		}
	case domain.ServiceMastery, domain.ServiceLeveling:
		if in.CurrentLevel < 0 || in.DesiredLevel <= in.CurrentLevel {
			return ErrInvalidLevels
		}
		if in.DesiredLevel > e.levelCap(in.ServiceType) {
			return ErrLevelOutOfRange
		}
	default:
		return ErrUnknownService
	}

	if q := e.Calculate(in); q.BasePrice <= 0 {
		return ErrZeroPrice
	}
	return nil
}
