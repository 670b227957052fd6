// Package signal defines the market signal model shared by every connector:
// categories, priorities, the Signal record itself, the live Store and the
// Scanner that drives the connector registry.
package signal

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Category classifies a signal by the market it speaks to.
type Category string

const (
	CategoryCrypto       Category = "crypto"
	CategoryMacro        Category = "macro"
	CategoryRates        Category = "rates"
	CategoryMetals       Category = "metals"
	CategoryAIDisruption Category = "ai_disruption"
	CategoryEquities     Category = "equities"
	CategoryOptions      Category = "options"
	CategoryFX           Category = "fx"
	CategoryStructural   Category = "structural"
)

// Categories lists every known category in a stable order.
var Categories = []Category{
	CategoryCrypto,
	CategoryMacro,
	CategoryRates,
	CategoryMetals,
	CategoryAIDisruption,
	CategoryEquities,
	CategoryOptions,
	CategoryFX,
	CategoryStructural,
}

// Priority orders signals for display and filtering. CRITICAL sorts first.
type Priority string

const (
	PriorityCritical Priority = "CRITICAL"
	PriorityHigh     Priority = "HIGH"
	PriorityMedium   Priority = "MEDIUM"
	PriorityLow      Priority = "LOW"
)

// Rank returns the sort rank of a priority: CRITICAL 0 through LOW 3.
// Unknown values rank below LOW.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 3
	default:
		return 4
	}
}

// AtLeast reports whether p is at or above min in urgency.
func (p Priority) AtLeast(min Priority) bool {
	return p.Rank() <= min.Rank()
}

// Signal is one detected market condition. Connectors assign a stable ID to
// each distinct upstream condition so repeated polls do not duplicate it.
type Signal struct {
	ID                string                 `json:"id"`
	Name              string                 `json:"name"`
	SourceName        string                 `json:"source_name"`
	SourceAPI         string                 `json:"source_api"`
	Category          Category               `json:"category"`
	Priority          Priority               `json:"priority"`
	Direction         float64                `json:"direction"` // -1 bearish .. +1 bullish
	Strength          float64                `json:"strength"`  // 0 .. 1
	Description       string                 `json:"description"`
	AffectedAssets    []string               `json:"affected_assets"`
	TradeImplications []string               `json:"trade_implications"`
	Opportunities     []string               `json:"opportunities,omitempty"`
	RawData           map[string]interface{} `json:"raw_data,omitempty"`
	DetectedAt        time.Time              `json:"detected_at"`
	TTLHours          float64                `json:"ttl_hours"`
	ReliabilityScore  float64                `json:"reliability_score"`
}

// Composite returns direction × strength × reliability: the signed weight
// this signal contributes to a category's net direction.
func (s *Signal) Composite() float64 {
	return s.Direction * s.Strength * s.ReliabilityScore
}

// Expired reports whether the signal has outlived its TTL at now.
func (s *Signal) Expired(now time.Time) bool {
	return now.Sub(s.DetectedAt).Hours() > s.TTLHours
}

// MakeID builds a short stable identifier from the parts that define an
// upstream condition. Two polls observing the same condition produce the
// same id, which is what the store's dedup keys on.
func MakeID(parts ...interface{}) string {
	strs := make([]string, len(parts))
	for i, p := range parts {
		strs[i] = fmt.Sprint(p)
	}
	sum := md5.Sum([]byte(strings.Join(strs, ":")))
	return hex.EncodeToString(sum[:])[:12]
}
