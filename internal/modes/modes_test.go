package modes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyComplexity(t *testing.T) {
	cases := map[string]Complexity{
		"refactor the auth module":   Complex,
		"migrate to the new API":     Complex,
		"add a new endpoint":         Medium,
		"implement caching":          Medium,
		"fix the typo in the banner": Simple,
		"update the README":          Simple,
		"do a thing":                 Medium,
	}
	for desc, want := range cases {
		assert.Equal(t, want, ClassifyComplexity(desc), desc)
	}
}

func TestManagerDefaultsToSpeed(t *testing.T) {
	m := NewManager(nil)
	assert.Equal(t, SPEED, m.Active())
}

func TestSwitchModeTransitionsActive(t *testing.T) {
	m := NewManager(nil)
	require.NoError(t, m.SwitchMode(QUALITY))
	assert.Equal(t, QUALITY, m.Active())
}

func TestSwitchModeRejectsUnknownMode(t *testing.T) {
	m := NewManager(nil)
	err := m.SwitchMode("NONSENSE")
	assert.Error(t, err)
}

func TestAllFourStrategiesRegistered(t *testing.T) {
	m := NewManager(nil)
	for _, name := range []Name{SPEED, QUALITY, AUTONOMY, COST} {
		s, ok := m.Strategy(name)
		require.True(t, ok, name)
		assert.Equal(t, name, s.Name())
	}
}

func TestCostStrategyImplementsContinuationStrategy(t *testing.T) {
	m := NewManager(nil)
	s, ok := m.Strategy(COST)
	require.True(t, ok)
	cs, ok := s.(ContinuationStrategy)
	require.True(t, ok, "COST strategy must implement ContinuationStrategy")
	assert.True(t, cs.ShouldContinue(0))
}

func TestQualityDecomposeIncludesValidationPhases(t *testing.T) {
	m := NewManager(nil)
	s, _ := m.Strategy(QUALITY)
	phases, err := s.Decompose("add a feature", Medium)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(phases), 3)
}
