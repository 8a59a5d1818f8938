package rewards

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

var hundred = decimal.NewFromInt(100)

// ErrInvalidLadder is returned when tiers are malformed.
var ErrInvalidLadder = errors.New("invalid bonus ladder")

// =============================================================================
// LADDER
// =============================================================================

// Ladder is an ascending, duplicate-free list of tiers. Safe for concurrent reads.
type Ladder struct {
	tiers []Tier
}

// NewLadder sorts tiers by threshold and rejects negative or duplicate thresholds.
func NewLadder(tiers []Tier) (*Ladder, error) {
	sorted := make([]Tier, len(tiers))
	copy(sorted, tiers)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Threshold.LessThan(sorted[j].Threshold)
	})

	for i, t := range sorted {
		if t.Threshold.IsNegative() {
			return nil, fmt.Errorf("%w: tier %q has negative threshold %s", ErrInvalidLadder, t.Prize, t.Threshold)
		}
		if t.Prize == "" {
			return nil, fmt.Errorf("%w: tier at %s has no prize", ErrInvalidLadder, t.Threshold)
		}
		if i > 0 && sorted[i-1].Threshold.Equal(t.Threshold) {
			return nil, fmt.Errorf("%w: duplicate threshold %s", ErrInvalidLadder, t.Threshold)
		}
	}
	return &Ladder{tiers: sorted}, nil
}

// DefaultLadder returns the ladder built from DefaultTiers.
func DefaultLadder() *Ladder {
	l, _ := NewLadder(DefaultTiers())
	return l
}

// Tiers returns a copy of the tiers, ascending.
func (l *Ladder) Tiers() []Tier {
	out := make([]Tier, len(l.tiers))
	copy(out, l.tiers)
	return out
}

// Evaluate places progress on the ladder.
//
//	reached          = tiers with threshold <= progress
//	current          = highest reached
//	next             = lowest unreached
//	remaining        = next.threshold - progress
//	remainingAmount  = max(0, target * next.threshold / 100 - approvedTotal)
func (l *Ladder) Evaluate(progress, target, approvedTotal decimal.Decimal) Standing {
	s := Standing{Remaining: decimal.Zero, RemainingAmount: decimal.Zero}

	for i := range l.tiers {
		t := l.tiers[i]
		if t.Threshold.LessThanOrEqual(progress) {
			s.Reached = append(s.Reached, t)
			continue
		}
		s.Next = &t
		break
	}

	if n := len(s.Reached); n > 0 {
		current := s.Reached[n-1]
		s.Current = &current
	}

	if s.Next != nil {
		s.Remaining = s.Next.Threshold.Sub(progress)
		needed := target.Mul(s.Next.Threshold).Div(hundred).Sub(approvedTotal)
		if needed.IsPositive() {
			s.RemainingAmount = needed
		}
	}
	return s
}

// =============================================================================
// YAML LOADING
// =============================================================================

type ladderFile struct {
	Tiers []tierYAML `yaml:"tiers"`
}

// tierYAML keeps the threshold as a string so "85" and 85.5 both parse exactly.
type tierYAML struct {
	Threshold string `yaml:"threshold"`
	Prize     string `yaml:"prize"`
}

// ParseLadder reads a YAML ladder document.
func ParseLadder(data []byte) (*Ladder, error) {
	var f ladderFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse ladder: %w", err)
	}
	if len(f.Tiers) == 0 {
		return nil, fmt.Errorf("%w: no tiers", ErrInvalidLadder)
	}

	tiers := make([]Tier, 0, len(f.Tiers))
	for _, t := range f.Tiers {
		threshold, err := decimal.NewFromString(t.Threshold)
		if err != nil {
			return nil, fmt.Errorf("%w: threshold %q: %v", ErrInvalidLadder, t.Threshold, err)
		}
		tiers = append(tiers, Tier{Threshold: threshold, Prize: t.Prize})
	}
	return NewLadder(tiers)
}

// LoadLadder reads a YAML ladder file from disk.
func LoadLadder(path string) (*Ladder, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ladder file: %w", err)
	}
	return ParseLadder(data)
}
