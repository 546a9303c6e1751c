package sensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistanceSpeed_Compute(t *testing.T) {
	previous := NewDistanceSpeed(testAddress, "speed", 0, 0)
	current := NewDistanceSpeed(testAddress, "speed", 10, 1024)

	require.NoError(t, current.Compute(previous, 2000))

	value, ok := current.Value()
	require.True(t, ok)
	assert.InDelta(t, 20.0, value.Distance.ToM(), 1e-9)
	assert.InDelta(t, 20.0, value.Speed.ToMPS(), 1e-9)
	assert.Equal(t, value.Distance, value.DistanceOverall)
}

func TestDistanceSpeed_Compute_ChainsOverallDistance(t *testing.T) {
	readings := []*DistanceSpeed{
		NewDistanceSpeed(testAddress, "speed", 100, 0),
		NewDistanceSpeed(testAddress, "speed", 105, 1024),
		NewDistanceSpeed(testAddress, "speed", 112, 2048),
		NewDistanceSpeed(testAddress, "speed", 115, 3072),
	}
	for i := 1; i < len(readings); i++ {
		require.NoError(t, readings[i].Compute(readings[i-1], 2000))
	}

	second, _ := readings[1].Value()
	third, _ := readings[2].Value()
	last, ok := readings[3].Value()
	require.True(t, ok)
	assert.InDelta(t, 10.0, second.DistanceOverall.ToM(), 1e-9)
	assert.InDelta(t, 24.0, third.DistanceOverall.ToM(), 1e-9)
	assert.InDelta(t, 30.0, last.DistanceOverall.ToM(), 1e-9)
	assert.InDelta(t, 6.0, last.Distance.ToM(), 1e-9)
	assert.InDelta(t, 6.0, last.Speed.ToMPS(), 1e-9)

	readings[3].Reset()

	reset, ok := readings[3].Value()
	require.True(t, ok)
	assert.InDelta(t, 6.0, reset.Distance.ToM(), 1e-9)
	assert.InDelta(t, 6.0, reset.Speed.ToMPS(), 1e-9)
	assert.Equal(t, 0.0, reset.DistanceOverall.ToM())
}

func TestDistanceSpeed_Compute_AfterReset(t *testing.T) {
	first := NewDistanceSpeed(testAddress, "speed", 0, 0)
	second := NewDistanceSpeed(testAddress, "speed", 5, 1024)
	require.NoError(t, second.Compute(first, 2000))
	second.Reset()

	third := NewDistanceSpeed(testAddress, "speed", 8, 2048)
	require.NoError(t, third.Compute(second, 2000))

	value, ok := third.Value()
	require.True(t, ok)
	assert.InDelta(t, 6.0, value.DistanceOverall.ToM(), 1e-9)
}

func TestDistanceSpeed_Compute_Wraparound(t *testing.T) {
	previous := NewDistanceSpeed(testAddress, "speed", 65534, 65000)
	current := NewDistanceSpeed(testAddress, "speed", 2, 488)

	require.NoError(t, current.Compute(previous, 2000))
	value, ok := current.Value()
	require.True(t, ok)
	// 4 revolutions in 1024 ticks
	assert.InDelta(t, 8.0, value.Distance.ToM(), 1e-9)
	assert.InDelta(t, 8.0, value.Speed.ToMPS(), 1e-9)
}

func TestDistanceSpeed_Compute_BackwardCounterIsNonNegative(t *testing.T) {
	// Beyond the 16-bit modulus the wrapped delta comes out negative
	previous := NewDistanceSpeed(testAddress, "speed", 70000, 0)
	current := NewDistanceSpeed(testAddress, "speed", 5, 1024)
	require.Negative(t, Diff(5, 70000, Uint16Max))

	require.NoError(t, current.Compute(previous, 1000))
	value, ok := current.Value()
	require.True(t, ok)
	assert.GreaterOrEqual(t, value.Distance.ToM(), 0.0)
	assert.InDelta(t, 4459.0, value.Distance.ToM(), 1e-9)
	assert.GreaterOrEqual(t, value.Speed.ToMPS(), 0.0)
}

func TestDistanceSpeed_Compute_ZeroElapsedTime(t *testing.T) {
	previous := NewDistanceSpeed(testAddress, "speed", 0, 0)
	second := NewDistanceSpeed(testAddress, "speed", 10, 1024)
	require.NoError(t, second.Compute(previous, 2000))

	duplicate := NewDistanceSpeed(testAddress, "speed", 12, 1024)
	err := duplicate.Compute(second, 2000)
	assert.ErrorIs(t, err, ErrInvalidTimeDelta)
	assert.False(t, duplicate.HasValue())
}

func TestDistanceSpeed_Compute_SubMillisecondIsInvalid(t *testing.T) {
	// one tick is below one millisecond and truncates to zero
	previous := NewDistanceSpeed(testAddress, "speed", 0, 100)
	current := NewDistanceSpeed(testAddress, "speed", 1, 101)

	assert.ErrorIs(t, current.Compute(previous, 2000), ErrInvalidTimeDelta)
	assert.False(t, current.HasValue())
}

func TestDistanceSpeed_Compute_InsufficientData(t *testing.T) {
	current := NewDistanceSpeed(testAddress, "speed", 10, 1024)
	assert.NoError(t, current.Compute(nil, 2000))
	assert.NoError(t, current.Compute(NewDistanceSpeedWithoutData(testAddress), 2000))
	assert.False(t, current.HasValue())

	empty := NewDistanceSpeedWithoutData(testAddress)
	assert.NoError(t, empty.Compute(NewDistanceSpeed(testAddress, "speed", 0, 0), 2000))
	assert.False(t, empty.HasValue())
}

func TestDistanceSpeed_Reset_WithoutValue(t *testing.T) {
	current := NewDistanceSpeed(testAddress, "speed", 10, 1024)
	current.Reset()
	assert.False(t, current.HasValue())
}

func TestDistanceSpeed_Equal_IgnoresDerivedValue(t *testing.T) {
	previous := NewDistanceSpeed(testAddress, "speed", 0, 0)
	a := NewDistanceSpeed(testAddress, "speed", 10, 1024)
	b := NewDistanceSpeed(testAddress, "speed", 10, 1024)
	require.NoError(t, a.Compute(previous, 2000))
	require.NoError(t, b.Compute(previous, 2100))

	va, _ := a.Value()
	vb, _ := b.Value()
	assert.NotEqual(t, va.Distance, vb.Distance)
	assert.True(t, a.Equal(b))

	assert.False(t, a.Equal(NewDistanceSpeed(testAddress, "speed", 11, 1024)))
	assert.False(t, a.Equal(NewDistanceSpeedWithoutData(testAddress)))
	assert.False(t, NewDistanceSpeedWithoutData(testAddress).Equal(NewDistanceSpeedWithoutData(testAddress)))
}

func TestPairedCadenceSpeed(t *testing.T) {
	var missing *CadenceAndSpeed
	assert.Nil(t, missing.Cadence())
	assert.Nil(t, missing.DistanceSpeed())
	assert.False(t, missing.HasValue())

	cadence := NewCadence(testAddress, "csc", 1100, 512)
	paired := NewCadenceAndSpeed(testAddress, "csc", cadence, nil)
	assert.Equal(t, testAddress, paired.SensorAddress())
	assert.Equal(t, "csc", paired.SensorName())
	assert.Same(t, cadence, paired.Cadence())
	assert.Nil(t, paired.DistanceSpeed())
	assert.False(t, paired.HasValue())

	require.NoError(t, cadence.Compute(NewCadence(testAddress, "csc", 1000, 0)))
	assert.True(t, paired.HasValue())
}
