package pricing

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

type Tier int

const (
	Iron Tier = iota
	Bronze
	Silver
	Gold
	Platinum
	Emerald
	Diamond
	Master
	Grandmaster
	Challenger
)

var tierNames = [...]string{
	Iron:        "IRON",
	Bronze:      "BRONZE",
	Silver:      "SILVER",
	Gold:        "GOLD",
	Platinum:    "PLATINUM",
	Emerald:     "EMERALD",
	Diamond:     "DIAMOND",
	Master:      "MASTER",
	Grandmaster: "GRANDMASTER",
	Challenger:  "CHALLENGER",
}

var divisionNames = [...]string{1: "I", 2: "II", 3: "III", 4: "IV"}

func (t Tier) String() string {
	if t < Iron || t > Challenger {
		return "UNKNOWN"
	}
	return tierNames[t]
}

// Apex tiers have no divisions.
func (t Tier) Apex() bool {
	return t >= Master
}

// Rank is a tier and division. Division runs from 4 (IV, lowest) to 1 (I, highest) and is 0
// for apex tiers.
type Rank struct {
	Tier     Tier
	Division int
}

var ErrUnknownRank = errors.New("unknown rank")

func (r Rank) Key() string {
	if r.Tier.Apex() {
		return r.Tier.String()
	}
	return r.Tier.String() + "_" + divisionNames[r.Division]
}

func (r Rank) String() string {
	return r.Key()
}

func (r Rank) ordinal() int {
	if r.Tier.Apex() {
		return int(Master)*4 + int(r.Tier-Master)
	}
	return int(r.Tier)*4 + (4 - r.Division)
}

// Compare orders ranks from Iron IV up to Challenger.
func Compare(a, b Rank) int {
	return a.ordinal() - b.ordinal()
}

func (r Rank) Less(other Rank) bool {
	return Compare(r, other) < 0
}

// Scale lists every selectable rank in ascending order.
func Scale() []Rank {
	ranks := make([]Rank, 0, int(Master)*4+3)
	for t := Iron; t < Master; t++ {
		for d := 4; d >= 1; d-- {
			ranks = append(ranks, Rank{Tier: t, Division: d})
		}
	}
	for t := Master; t <= Challenger; t++ {
		ranks = append(ranks, Rank{Tier: t})
	}
	return ranks
}

// ParseRank accepts GOLD_IV, "gold iv", Gold-4 and apex names such as MASTER.
func ParseRank(key string) (Rank, error) {
	normalized := strings.NewReplacer("-", " ", "_", " ").Replace(strings.ToUpper(strings.TrimSpace(key)))
	parts := strings.Fields(normalized)
	if len(parts) == 0 || len(parts) > 2 {
		return Rank{}, fmt.Errorf("%w: %q", ErrUnknownRank, key)
	}

	tier := Tier(-1)
	for t, name := range tierNames {
		if name == parts[0] {
			tier = Tier(t)
			break
		}
	}
	if tier < Iron {
		return Rank{}, fmt.Errorf("%w: %q", ErrUnknownRank, key)
	}

	if tier.Apex() {
		if len(parts) != 1 {
			return Rank{}, fmt.Errorf("%w: %q", ErrUnknownRank, key)
		}
		return Rank{Tier: tier}, nil
	}
	if len(parts) != 2 {
		return Rank{}, fmt.Errorf("%w: %q", ErrUnknownRank, key)
	}

	division, ok := parseDivision(parts[1])
	if !ok {
		return Rank{}, fmt.Errorf("%w: %q", ErrUnknownRank, key)
	}
	return Rank{Tier: tier, Division: division}, nil
}

func parseDivision(s string) (int, bool) {
	for d := 1; d <= 4; d++ {
		if divisionNames[d] == s {
			return d, true
		}
	}
	d, err := strconv.Atoi(s)
	if err != nil || d < 1 || d > 4 {
		return 0, false
	}
	return d, true
}

// TierMultiplier scales per-game rates for accounts in higher tiers.
func TierMultiplier(t Tier) decimal.Decimal {
	switch {
	case t >= Master:
		return decimal.RequireFromString("1.5")
	case t == Diamond:
		return decimal.RequireFromString("1.35")
	case t >= Platinum:
		return decimal.RequireFromString("1.2")
	default:
		return decimal.NewFromInt(1)
	}
}

// PriceTable maps a canonical rank key to its price anchor.
type PriceTable map[string]int64

// DefaultPriceTable is the hand-tuned anchor list. Every rank of Scale has an entry.
func DefaultPriceTable() PriceTable {
	return PriceTable{
		"IRON_IV": 0, "IRON_III": 40000, "IRON_II": 80000, "IRON_I": 120000,
		"BRONZE_IV": 165000, "BRONZE_III": 215000, "BRONZE_II": 265000, "BRONZE_I": 315000,
		"SILVER_IV": 375000, "SILVER_III": 440000, "SILVER_II": 505000, "SILVER_I": 570000,
		"GOLD_IV": 650000, "GOLD_III": 730000, "GOLD_II": 810000, "GOLD_I": 890000,
		"PLATINUM_IV": 1010000, "PLATINUM_III": 1130000, "PLATINUM_II": 1250000, "PLATINUM_I": 1370000,
		"EMERALD_IV": 1520000, "EMERALD_III": 1690000, "EMERALD_II": 1860000, "EMERALD_I": 2030000,
		"DIAMOND_IV": 2250000, "DIAMOND_III": 2530000, "DIAMOND_II": 2840000, "DIAMOND_I": 3190000,
		"MASTER":      3650000,
		"GRANDMASTER": 5150000,
		"CHALLENGER":  7650000,
	}
}

// Validate checks the table is complete and non-decreasing along the rank order.
func (p PriceTable) Validate() error {
	var prev int64
	for i, r := range Scale() {
		price, ok := p[r.Key()]
		if !ok {
			return fmt.Errorf("price table has no entry for %s", r.Key())
		}
		if price < 0 || price > maxAmount {
			return fmt.Errorf("price table entry for %s is out of range", r.Key())
		}
		if i > 0 && price < prev {
			return fmt.Errorf("price table decreases at %s", r.Key())
		}
		prev = price
	}
	return nil
}

func (p PriceTable) clone() PriceTable {
	c := make(PriceTable, len(p))
	for k, v := range p {
		c[k] = v
	}
	return c
}
