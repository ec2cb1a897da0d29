package stopcond

import (
	"bytes"
	"log/slog"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/star/trajevent/internal/cyclic"
	"github.com/star/trajevent/internal/fault"
	"github.com/star/trajevent/internal/interp"
)

func newTracker(t *testing.T, cfg Config) *Tracker {
	t.Helper()
	tr, err := New(cfg)
	require.NoError(t, err)
	return tr
}

func feed(t *testing.T, tr *Tracker, epoch, value float64) bool {
	t.Helper()
	ok, err := tr.Evaluate(epoch, value)
	require.NoError(t, err)
	return ok
}

func TestEvaluate_FirstSampleIsBaseline(t *testing.T) {
	tr := newTracker(t, Config{Name: "Sat.RMAG", Goal: 5, Interpolator: interp.NewLagrange(2)})

	assert.False(t, feed(t, tr, 0, 5))
	assert.Equal(t, 0.0, tr.PreviousEpoch())
	assert.Equal(t, 5.0, tr.PreviousValue())
}

func TestEvaluate_BracketCorrectness(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	const goal = 0.5

	for trial := 0; trial < 50; trial++ {
		tr := newTracker(t, Config{Name: "Sat.X", Goal: goal, Interpolator: interp.NewLagrange(2)})

		prev := rng.Float64()
		feed(t, tr, 0, prev)
		for i := 1; i < 40; i++ {
			curr := rng.Float64()
			lo, hi := math.Min(prev, curr), math.Max(prev, curr)
			want := lo != hi && goal >= lo && goal <= hi

			got := feed(t, tr, float64(i), curr)
			require.Equal(t, want, got, "trial %d step %d: %g -> %g", trial, i, prev, curr)
			if got {
				require.NoError(t, tr.UpdateBuffer())
			}
			prev = curr
		}
	}
}

func TestEvaluate_NeverCrossesOutsideRange(t *testing.T) {
	tr := newTracker(t, Config{Name: "Sat.X", Goal: 100, Interpolator: interp.NewLagrange(2)})
	for i := 0; i < 20; i++ {
		assert.False(t, feed(t, tr, float64(i), math.Sin(float64(i))))
	}
}

func TestEvaluate_FlatSamplesNeverCross(t *testing.T) {
	tr := newTracker(t, Config{Name: "Sat.X", Goal: 1, Interpolator: interp.NewLagrange(2)})
	feed(t, tr, 0, 1)
	assert.False(t, feed(t, tr, 1, 1))
}

func TestEvaluate_NoDoubleFire(t *testing.T) {
	tr := newTracker(t, Config{Name: "Sat.X", Goal: 5, Interpolator: interp.NewLagrange(2)})
	feed(t, tr, 0, 4)

	assert.True(t, feed(t, tr, 1, 6))
	assert.Equal(t, 4.0, tr.PreviousValue(), "crossing must not advance the baseline")
	assert.True(t, feed(t, tr, 1, 6), "same pair must report the same result")

	require.NoError(t, tr.UpdateBuffer())
	assert.Equal(t, 1.0, tr.PreviousEpoch())
	assert.Equal(t, 6.0, tr.PreviousValue())
	assert.False(t, feed(t, tr, 2, 8))
}

func TestEvaluate_CyclicWrap(t *testing.T) {
	tr := newTracker(t, Config{
		Name:         "Sat.TA",
		Goal:         359,
		Cycle:        cyclic.Zero360,
		Interpolator: interp.NewLagrange(2),
	})
	feed(t, tr, 0, 358)
	assert.True(t, feed(t, tr, 4, 2))

	ok, err := tr.AddToBuffer(true)
	require.NoError(t, err)
	require.True(t, ok)

	epoch, err := tr.StopEpoch()
	require.NoError(t, err)
	assert.InDelta(t, 1.0, epoch, 1e-9)

	diff, err := tr.StopDifference()
	require.NoError(t, err)
	assert.InDelta(t, -3.0, diff, 1e-9)
}

func TestEvaluate_CyclicGoalOutsideCanonicalRange(t *testing.T) {
	tr := newTracker(t, Config{
		Name:         "Sat.RAAN",
		Goal:         -1,
		Cycle:        cyclic.Zero360,
		Interpolator: interp.NewLagrange(2),
	})
	feed(t, tr, 0, 358)
	assert.True(t, feed(t, tr, 1, 360.5))
}

func TestEvaluate_CyclicFarFromGoalRebases(t *testing.T) {
	tr := newTracker(t, Config{
		Name:         "Sat.TA",
		Goal:         90,
		Cycle:        cyclic.Zero360,
		Interpolator: interp.NewLagrange(2),
	})
	feed(t, tr, 0, 250)
	// 280 is 170 degrees from the goal, so it only becomes the new baseline.
	assert.False(t, feed(t, tr, 1, 280))
	assert.Equal(t, 280.0, tr.PreviousValue())
}

func TestEvaluate_ApsisGating(t *testing.T) {
	cfg := Config{
		Name:         "Sat.RdotV",
		Goal:         0,
		Apsis:        Apoapsis,
		Direction:    Forward,
		Eccentricity: Const(0.3),
		Interpolator: interp.NewLagrange(2),
	}

	t.Run("descending through zero", func(t *testing.T) {
		tr := newTracker(t, cfg)
		feed(t, tr, 0, 1)
		assert.True(t, feed(t, tr, 1, -1))
	})

	t.Run("ascending through zero", func(t *testing.T) {
		tr := newTracker(t, cfg)
		feed(t, tr, 0, -1)
		assert.False(t, feed(t, tr, 1, 1))
		assert.Equal(t, 1.0, tr.PreviousValue())
	})

	t.Run("periapsis", func(t *testing.T) {
		c := cfg
		c.Apsis = Periapsis
		tr := newTracker(t, c)
		feed(t, tr, 0, -1)
		assert.True(t, feed(t, tr, 1, 1))
	})

	t.Run("circular orbit", func(t *testing.T) {
		c := cfg
		c.Eccentricity = Const(0)
		tr := newTracker(t, c)
		feed(t, tr, 0, 1)
		assert.False(t, feed(t, tr, 1, -1))
	})
}

func TestEvaluate_TimeCondition(t *testing.T) {
	tr := newTracker(t, Config{
		Name:     "Sat.ElapsedDays",
		Goal:     100,
		TimeUnit: Days,
	})
	feed(t, tr, 10, 90)
	assert.True(t, feed(t, tr, 11, 110))

	epoch, err := tr.StopEpoch()
	require.NoError(t, err)
	assert.Equal(t, 864000.0, epoch)

	ok, err := tr.AddToBuffer(true)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEvaluate_TimeConditionBackward(t *testing.T) {
	tr := newTracker(t, Config{Name: "Sat.ElapsedSecs", Goal: -30, TimeUnit: Seconds, Direction: Backward})
	feed(t, tr, 0, 0)
	assert.False(t, feed(t, tr, -20, -20))
	assert.True(t, feed(t, tr, -40, -40))

	epoch, err := tr.StopEpoch()
	require.NoError(t, err)
	assert.Equal(t, -10.0, epoch)
}

func TestEvaluate_UnreachableTimeGoalWarnsOnce(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))

	tr, err := New(Config{Name: "Sat.ElapsedSecs", Goal: 5, TimeUnit: Seconds}, WithLogger(logger))
	require.NoError(t, err)

	feed(t, tr, 0, 10)
	assert.False(t, feed(t, tr, 1, 20))
	assert.False(t, feed(t, tr, 2, 30))

	assert.Equal(t, 1, bytes.Count(logs.Bytes(), []byte("will never be satisfied")))
}

func TestEvaluate_DynamicGoal(t *testing.T) {
	goal := 10.0
	tr := newTracker(t, Config{
		Name:         "Sat.X",
		DynamicGoal:  true,
		GoalFunc:     func() (float64, error) { return goal, nil },
		Interpolator: interp.NewLagrange(2),
	})
	feed(t, tr, 0, 0)
	assert.False(t, feed(t, tr, 1, 5))

	goal = 7
	assert.True(t, feed(t, tr, 2, 8))
}

func TestSkipEvaluation(t *testing.T) {
	tr := newTracker(t, Config{Name: "Sat.X", Goal: 5, Interpolator: interp.NewLagrange(2)})
	feed(t, tr, 0, 0)

	tr.SkipEvaluation(true)
	assert.False(t, tr.Active())
	assert.False(t, feed(t, tr, 1, 10))
	assert.False(t, feed(t, tr, 2, 20))
	assert.Equal(t, 0.0, tr.PreviousValue(), "inactive tracker must not advance the baseline")

	tr.SkipEvaluation(false)
	assert.True(t, feed(t, tr, 3, 10))
}

func TestSkipEvaluation_ModJulianCannotBeDeactivated(t *testing.T) {
	tr := newTracker(t, Config{Name: "Sat.A1ModJulian", Goal: 21545.5, TimeUnit: TimeUnitForParam("A1ModJulian")})
	tr.SkipEvaluation(true)
	assert.True(t, tr.Active())

	feed(t, tr, 0, 21545)
	assert.True(t, feed(t, tr, 86400, 21546))
	epoch, err := tr.StopEpoch()
	require.NoError(t, err)
	assert.InDelta(t, 43200, epoch, 1e-6)
}

func TestAddToBuffer_FillsBeforeInterpolating(t *testing.T) {
	tr := newTracker(t, Config{Name: "Sat.X", Goal: 5, Interpolator: interp.NewLagrange(3)})
	for i, v := range []float64{0, 2, 4} {
		assert.False(t, feed(t, tr, float64(i), v))
	}
	require.True(t, feed(t, tr, 3, 6))

	ok, err := tr.AddToBuffer(true)
	require.NoError(t, err)
	assert.False(t, ok, "two of three points")
	assert.Equal(t, 2, tr.ValidPoints())

	_, err = tr.StopEpoch()
	assert.True(t, fault.Is(err, fault.InterpolationFailure))

	tr.Observe(4, 8)
	ok, err = tr.AddToBuffer(false)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 3, tr.ValidPoints())

	cached, has := tr.CachedStopEpoch()
	require.True(t, has)
	assert.InDelta(t, 2.5, cached, 1e-9)

	epoch, err := tr.StopEpoch()
	require.NoError(t, err)
	assert.InDelta(t, 2.5, epoch, 1e-9)
}

func TestAddToBuffer_GoalRolledOut(t *testing.T) {
	tr := newTracker(t, Config{Name: "Sat.X", Goal: 5, Interpolator: interp.NewLagrange(2)})
	feed(t, tr, 0, 4)
	require.True(t, feed(t, tr, 1, 6))

	ok, err := tr.AddToBuffer(true)
	require.NoError(t, err)
	require.True(t, ok)

	tr.Observe(2, 8)
	ok, err = tr.AddToBuffer(false)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = tr.StopEpoch()
	assert.True(t, fault.Is(err, fault.InterpolationFailure))
}

func TestAddToBuffer_DegeneratePoints(t *testing.T) {
	tr := newTracker(t, Config{Name: "Sat.X", Goal: 5, Interpolator: interp.NewLagrange(3)})
	feed(t, tr, 0, 4)
	require.True(t, feed(t, tr, 1, 6))

	_, err := tr.AddToBuffer(true)
	require.NoError(t, err)

	tr.Observe(2, 6)
	ok, err := tr.AddToBuffer(false)
	assert.False(t, ok)
	assert.True(t, fault.Is(err, fault.InterpolationFailure))
}

func TestReset(t *testing.T) {
	tr := newTracker(t, Config{Name: "Sat.X", Goal: 5, Interpolator: interp.NewLagrange(2)})
	feed(t, tr, 0, 4)
	feed(t, tr, 1, 6)
	_, err := tr.AddToBuffer(true)
	require.NoError(t, err)

	tr.Reset()
	assert.Equal(t, 0, tr.ValidPoints())
	_, has := tr.CachedStopEpoch()
	assert.False(t, has)
	assert.False(t, feed(t, tr, 5, 6), "first sample after reset is a baseline")
}

func TestNew_MissingCollaborators(t *testing.T) {
	_, err := New(Config{Name: "Sat.X"})
	assert.True(t, fault.Is(err, fault.MissingCollaborator))

	_, err = New(Config{Name: "Sat.RdotV", Apsis: Apoapsis, Interpolator: interp.NewLagrange(2)})
	assert.True(t, fault.Is(err, fault.MissingCollaborator))

	_, err = New(Config{Name: "Sat.TA", DynamicGoal: true, Interpolator: interp.NewLagrange(2)})
	assert.True(t, fault.Is(err, fault.MissingCollaborator))
	assert.ErrorContains(t, err, "goal provider")

	tr := newTracker(t, Config{Name: "Sat.X", Interpolator: interp.NewLagrange(2)})
	_, err = tr.EvaluateAt(0)
	assert.True(t, fault.Is(err, fault.MissingCollaborator))
}

func TestEvaluateAt(t *testing.T) {
	v := 0.0
	tr := newTracker(t, Config{
		Name:         "Sat.X",
		Goal:         1.5,
		Value:        func() (float64, error) { return v, nil },
		Interpolator: interp.NewLagrange(2),
	})
	for epoch := 0.0; epoch < 3; epoch++ {
		v = epoch
		ok, err := tr.EvaluateAt(epoch)
		require.NoError(t, err)
		assert.Equal(t, epoch == 2, ok)
	}
}

func TestTimeUnitForParam(t *testing.T) {
	assert.Equal(t, Seconds, TimeUnitForParam("ElapsedSecs"))
	assert.Equal(t, Days, TimeUnitForParam("ElapsedDays"))
	assert.Equal(t, EpochDays, TimeUnitForParam("TAIModJulian"))
	assert.Equal(t, NotTime, TimeUnitForParam("RMAG"))
	assert.Equal(t, 3600.0, Hours.Multiplier())
	assert.Equal(t, 1.0, UnknownTime.Multiplier())
}
