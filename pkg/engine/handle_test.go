package engine_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dd0wney/hydroturbo/pkg/engine"
	"github.com/dd0wney/hydroturbo/pkg/engine/enginetest"
)

func openFake(t *testing.T, lib engine.Library, opts ...engine.HandleOption) *engine.Handle {
	t.Helper()
	h := engine.NewHandle(lib, opts...)
	require.NoError(t, h.CreateProject())
	require.NoError(t, h.Open("net.inp", "net.rpt", "net.out"))
	require.NoError(t, h.OpenH())
	return h
}

func TestStatusClassification(t *testing.T) {
	assert.False(t, engine.StatusOK.IsWarning())
	assert.False(t, engine.StatusOK.IsFatal())
	for s := engine.Status(1); s <= 10; s++ {
		assert.True(t, s.IsWarning(), "status %d", s)
		assert.False(t, s.IsFatal(), "status %d", s)
	}
	for _, s := range []engine.Status{11, 101, 202, 251, -1} {
		assert.True(t, s.IsFatal(), "status %d", s)
	}
}

func TestHandle_FatalStatusBecomesEngineError(t *testing.T) {
	fake := enginetest.New(enginetest.Net9())
	fake.Inject("OpenH", 110, 0, 1)

	h := engine.NewHandle(fake)
	require.NoError(t, h.CreateProject())
	require.NoError(t, h.Open("a", "b", "c"))

	err := h.OpenH()
	require.Error(t, err)
	assert.True(t, errors.Is(err, engine.ErrEngineFault))

	var ee *engine.EngineError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, "EN_openH", ee.Call)
	assert.Equal(t, engine.Status(110), ee.Code)
	assert.Equal(t, "cannot solve network hydraulic equations", ee.Message)
	assert.Contains(t, err.Error(), "EN_openH failed with code 110")

	code, ok := engine.CodeOf(err)
	assert.True(t, ok)
	assert.Equal(t, engine.Status(110), code)
}

func TestHandle_WarningsAreSwallowed(t *testing.T) {
	fake := enginetest.New(enginetest.Net9())
	fake.Inject("RunH", 6, 0, 0)

	var seen []string
	h := openFake(t, fake, engine.WithWarningHook(func(call string, code engine.Status) {
		seen = append(seen, call)
		assert.Equal(t, engine.Status(6), code)
	}))
	require.NoError(t, h.InitH(engine.InitNoSave))

	_, err := h.RunH()
	require.NoError(t, err)
	_, err = h.RunH()
	require.NoError(t, err)
	assert.Equal(t, []string{"EN_runH", "EN_runH"}, seen)
}

func TestHandle_DetectsCapabilities(t *testing.T) {
	plain := engine.NewHandle(enginetest.New(enginetest.Net9()))
	assert.False(t, plain.Batched())
	_, ok := plain.Profile()
	assert.False(t, ok)

	batched := engine.NewHandle(enginetest.NewBatched(enginetest.Net9()))
	assert.True(t, batched.Batched())
	_, ok = batched.Profile()
	assert.True(t, ok)

	forced := engine.NewHandle(enginetest.NewBatched(enginetest.Net9()), engine.WithoutBatch())
	assert.False(t, forced.Batched())
}

func TestHandle_ToleratedSettingWriteReplaysPerIndex(t *testing.T) {
	fake := enginetest.NewBatched(enginetest.Net9())
	h := openFake(t, fake)

	// Link 1 is a pipe: a setting write reports 251 and stops the batch
	// before the pump and valve are reached.
	indices := []int32{1, 2, 3}
	values := []float64{9, 0.5, 42}
	require.NoError(t, h.SetLinkValues(engine.LinkInitSetting, indices, values, engine.StatusInvalidParam))

	assert.Equal(t, 1, fake.CallCount("SetLinkValues"))
	assert.Equal(t, 3, fake.CallCount("SetLinkValue"))

	out := make([]float64, 3)
	require.NoError(t, h.AllLinkValues(engine.LinkInitSetting, out))
	assert.Equal(t, []float64{0, 0.5, 42}, out)
}

func TestHandle_UntoleratedSettingWriteFails(t *testing.T) {
	h := openFake(t, enginetest.NewBatched(enginetest.Net9()))

	err := h.SetLinkValues(engine.LinkInitSetting, []int32{1}, []float64{1})
	require.Error(t, err)
	code, ok := engine.CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, engine.StatusInvalidParam, code)
}

func TestHandle_BatchedAndPerIndexAgree(t *testing.T) {
	run := func(lib engine.Library, opts ...engine.HandleOption) ([]float64, []float64) {
		h := openFake(t, lib, opts...)
		require.NoError(t, h.SetNodeValues(engine.NodeBaseDemand, []int32{2, 3}, []float64{300, 50}))
		require.NoError(t, h.InitH(engine.InitNoSave))
		_, err := h.RunH()
		require.NoError(t, err)

		pressure := make([]float64, 9)
		require.NoError(t, h.AllNodeValues(engine.NodePressure, pressure))
		subset := make([]float64, 2)
		require.NoError(t, h.NodeValues(engine.NodePressure, []int32{2, 3}, subset))
		assert.Equal(t, pressure[1:3], subset)

		flow := make([]float64, 3)
		require.NoError(t, h.AllLinkValues(engine.LinkFlow, flow))
		return pressure, flow
	}

	p1, f1 := run(enginetest.NewBatched(enginetest.Net9()))
	p2, f2 := run(enginetest.New(enginetest.Net9()))
	p3, f3 := run(enginetest.NewBatched(enginetest.Net9()), engine.WithoutBatch())

	assert.Equal(t, p1, p2)
	assert.Equal(t, p1, p3)
	assert.Equal(t, f1, f2)
	assert.Equal(t, f1, f3)
}

func TestHandle_EmptyWritesAreNoops(t *testing.T) {
	fake := enginetest.NewBatched(enginetest.Net9())
	h := openFake(t, fake)
	fake.ResetCalls()

	require.NoError(t, h.SetNodeValues(engine.NodeBaseDemand, nil, nil))
	require.NoError(t, h.SetLinkValues(engine.LinkInitStatus, nil, nil))
	require.NoError(t, h.NodeValues(engine.NodePressure, nil, nil))
	assert.Empty(t, fake.Calls())
}

func TestProfile_SolveEfficiency(t *testing.T) {
	assert.Equal(t, 0.0, engine.Profile{}.SolveEfficiency())
	p := engine.Profile{Total: 2, Assemble: 0.5, LinearSolve: 0.5}
	assert.InDelta(t, 0.5, p.SolveEfficiency(), 1e-12)
}
