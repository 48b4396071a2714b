package enginetest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dd0wney/hydroturbo/pkg/engine"
)

func TestFake_LifecycleOrdering(t *testing.T) {
	f := New(Net9())

	assert.Equal(t, engine.Status(102), f.Open("a", "b", "c"))
	require.Equal(t, engine.StatusOK, f.CreateProject())
	assert.Equal(t, engine.Status(102), f.OpenH())
	require.Equal(t, engine.StatusOK, f.Open("a", "b", "c"))
	assert.Equal(t, engine.Status(103), f.InitH(engine.InitNoSave))
	require.Equal(t, engine.StatusOK, f.OpenH())
	require.Equal(t, engine.StatusOK, f.InitH(engine.InitNoSave))
	assert.True(t, f.HydraulicsOpen())
	assert.Equal(t, [3]string{"a", "b", "c"}, f.OpenedPaths)
}

func TestFake_StepsToDuration(t *testing.T) {
	f := New(Net9())
	f.CreateProject()
	f.Open("a", "b", "c")
	f.OpenH()
	f.InitH(engine.InitNoSave)

	periods := 0
	for {
		_, st := f.RunH()
		require.Equal(t, engine.StatusOK, st)
		periods++
		step, st := f.NextH()
		require.Equal(t, engine.StatusOK, st)
		if step <= 0 {
			break
		}
	}
	assert.Equal(t, 25, periods)
}

func TestFake_InjectAfter(t *testing.T) {
	f := New(Net9())
	f.Inject("GetCount", 110, 1, 1)

	_, st := f.GetCount(engine.NodeCount)
	assert.Equal(t, engine.StatusOK, st)
	_, st = f.GetCount(engine.NodeCount)
	assert.Equal(t, engine.Status(110), st)
	n, st := f.GetCount(engine.NodeCount)
	assert.Equal(t, engine.StatusOK, st)
	assert.Equal(t, 9, n)
	assert.Equal(t, 3, f.CallCount("GetCount"))
}

func TestFake_DemandChangesPressure(t *testing.T) {
	f := New(Net9())
	f.CreateProject()
	f.Open("a", "b", "c")
	f.OpenH()

	f.InitH(engine.InitNoSave)
	f.RunH()
	before, _ := f.GetNodeValue(2, engine.NodePressure)

	require.Equal(t, engine.StatusOK, f.SetNodeValue(2, engine.NodeBaseDemand, 300))
	f.InitH(engine.InitNoSave)
	f.RunH()
	after, _ := f.GetNodeValue(2, engine.NodePressure)

	assert.Less(t, after, before)
}

func TestFake_PipeRejectsSetting(t *testing.T) {
	f := New(Net9())
	assert.Equal(t, engine.StatusInvalidParam, f.SetLinkValue(1, engine.LinkInitSetting, 5))
	assert.Equal(t, engine.StatusOK, f.SetLinkValue(3, engine.LinkInitSetting, 5))
	assert.Equal(t, engine.Status(202), f.SetLinkValue(1, engine.LinkInitStatus, 7))
}
