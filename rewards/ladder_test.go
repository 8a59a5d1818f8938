package rewards

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestEvaluate_BetweenTiers(t *testing.T) {
	// GIVEN: Tiers at 85 / 90 / 100
	// WHEN: Progress is 91% of a 1000 target (910 approved)
	// THEN: A and B are reached, C is next, 9 points and 90 money remain

	ladder, err := NewLadder([]Tier{
		{Threshold: d("85"), Prize: "A"},
		{Threshold: d("90"), Prize: "B"},
		{Threshold: d("100"), Prize: "C"},
	})
	require.NoError(t, err)

	s := ladder.Evaluate(d("91"), d("1000"), d("910"))

	assert.Equal(t, []string{"A", "B"}, s.ReachedPrizes())
	require.NotNil(t, s.Current)
	assert.Equal(t, "B", s.Current.Prize)
	require.NotNil(t, s.Next)
	assert.Equal(t, "C", s.Next.Prize)
	assert.Equal(t, "9", s.Remaining.String())
	assert.Equal(t, "90", s.RemainingAmount.String())
}

func TestEvaluate_Edges(t *testing.T) {
	ladder := DefaultLadder()

	t.Run("nothing reached", func(t *testing.T) {
		s := ladder.Evaluate(d("10"), d("500000000"), d("50000000"))
		assert.Empty(t, s.Reached)
		assert.Nil(t, s.Current)
		require.NotNil(t, s.Next)
		assert.Equal(t, "Washing machine", s.Next.Prize)
		assert.Equal(t, "75", s.Remaining.String())
		assert.Equal(t, "375000000", s.RemainingAmount.String())
	})

	t.Run("threshold is inclusive", func(t *testing.T) {
		s := ladder.Evaluate(d("85"), d("100"), d("85"))
		assert.Equal(t, []string{"Washing machine"}, s.ReachedPrizes())
	})

	t.Run("everything reached", func(t *testing.T) {
		s := ladder.Evaluate(d("120"), d("100"), d("120"))
		assert.Len(t, s.Reached, 3)
		assert.Nil(t, s.Next)
		assert.True(t, s.Remaining.IsZero())
		assert.True(t, s.RemainingAmount.IsZero())
	})

	t.Run("no target", func(t *testing.T) {
		s := ladder.Evaluate(decimal.Zero, decimal.Zero, decimal.Zero)
		require.NotNil(t, s.Next)
		assert.True(t, s.RemainingAmount.IsZero())
	})
}

func TestNewLadder_SortsAndValidates(t *testing.T) {
	ladder, err := NewLadder([]Tier{
		{Threshold: d("100"), Prize: "C"},
		{Threshold: d("85"), Prize: "A"},
	})
	require.NoError(t, err)
	tiers := ladder.Tiers()
	assert.Equal(t, "A", tiers[0].Prize)
	assert.Equal(t, "C", tiers[1].Prize)

	_, err = NewLadder([]Tier{{Threshold: d("85"), Prize: "A"}, {Threshold: d("85"), Prize: "B"}})
	assert.ErrorIs(t, err, ErrInvalidLadder)

	_, err = NewLadder([]Tier{{Threshold: d("-1"), Prize: "A"}})
	assert.ErrorIs(t, err, ErrInvalidLadder)

	_, err = NewLadder([]Tier{{Threshold: d("50")}})
	assert.ErrorIs(t, err, ErrInvalidLadder)
}

func TestParseLadder(t *testing.T) {
	doc := []byte(`
tiers:
  - threshold: 90
    prize: Refrigerator
  - threshold: 85.5
    prize: Washing machine
`)
	ladder, err := ParseLadder(doc)
	require.NoError(t, err)

	tiers := ladder.Tiers()
	require.Len(t, tiers, 2)
	assert.Equal(t, "85.5", tiers[0].Threshold.String())
	assert.Equal(t, "Washing machine", tiers[0].Prize)

	_, err = ParseLadder([]byte("tiers: []"))
	assert.ErrorIs(t, err, ErrInvalidLadder)

	_, err = ParseLadder([]byte("tiers:\n  - threshold: lots\n    prize: X\n"))
	assert.ErrorIs(t, err, ErrInvalidLadder)
}

func TestLoadLadder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tiers.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tiers:\n  - threshold: 50\n    prize: Half\n"), 0o644))

	ladder, err := LoadLadder(path)
	require.NoError(t, err)
	assert.Len(t, ladder.Tiers(), 1)

	_, err = LoadLadder(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
