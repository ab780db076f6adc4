package monitor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/lonitor/lonitor/internal/action"
	"github.com/lonitor/lonitor/internal/config"
	"github.com/lonitor/lonitor/internal/errors"
	"github.com/lonitor/lonitor/internal/history"
	"github.com/lonitor/lonitor/internal/model"
	"github.com/lonitor/lonitor/internal/procs"
	"github.com/lonitor/lonitor/internal/sampler"
	"github.com/lonitor/lonitor/internal/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticLister struct{}

func (staticLister) List(context.Context) ([]procs.Sample, error) {
	return []procs.Sample{
		{PID: 1, Name: "init", MemoryPercent: 0.1, CreateTime: 1},
		{PID: 4242, Name: "build", MemoryPercent: 12, CreateTime: 2},
	}, nil
}

type recordingKiller struct {
	mu   sync.Mutex
	pids []int32
}

func (k *recordingKiller) Kill(pid int32) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.pids = append(k.pids, pid)
	return nil
}

type deniedRAM struct{}

func (deniedRAM) Drop(context.Context) error {
	return errors.New().WithMessage(errors.ErrPermissionDenied, "Needs elevated privilege")
}

func testOptions(k procs.Killer) Options {
	return Options{
		Sources: source.Set{
			CPU:    source.Func[model.CPU](func(context.Context) (model.CPU, error) { return model.CPU{Total: 90}, nil }),
			Memory: source.Func[model.Memory](func(context.Context) (model.Memory, error) { return model.Memory{Used: 1, Total: 4}, nil }),
		},
		Sampler:     sampler.Options{Interval: 10 * time.Millisecond},
		HistorySize: 5,
		TopN:        3,
		Lister:      staticLister{},
		Killer:      k,
		Actions:     action.Deps{RAM: deniedRAM{}},
	}
}

func waitFirst(t *testing.T, m *Monitor) {
	t.Helper()
	require.Eventually(t, func() bool {
		_, ok := m.LatestSnapshot()
		return ok
	}, 2*time.Second, 5*time.Millisecond)
}

func TestMonitorLifecycle(t *testing.T) {
	m := New(testOptions(&recordingKiller{}))
	_, ok := m.LatestSnapshot()
	assert.False(t, ok)
	assert.Equal(t, history.BandUnknown, m.Classify(model.MetricCPU))

	require.NoError(t, m.Start(context.Background()))
	assert.Equal(t, errors.ErrInvalidArgument, errors.CodeOf(m.Start(context.Background())))
	waitFirst(t, m)

	points, err := m.History(model.MetricCPU)
	require.NoError(t, err)
	assert.NotEmpty(t, points)
	assert.LessOrEqual(t, len(points), 5)

	assert.Equal(t, history.BandCritical, m.Classify(model.MetricCPU))
	assert.Equal(t, history.BandNormal, m.Classify(model.MetricMemory))
	assert.Equal(t, history.BandUnknown, m.Classify(model.MetricBattery))

	m.Stop()
	m.Stop()

	seq := latestSeq(t, m)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, seq, latestSeq(t, m), "no ticks after Stop")
}

func latestSeq(t *testing.T, m *Monitor) uint64 {
	t.Helper()
	snap, ok := m.LatestSnapshot()
	require.True(t, ok)
	return snap.Seq
}

func TestMonitorKillProcess(t *testing.T) {
	killer := &recordingKiller{}
	m := New(testOptions(killer))
	ctx := context.Background()

	_, err := m.Sample(ctx)
	require.NoError(t, err)

	top := m.TopProcesses()
	require.Len(t, top, 2)
	assert.Equal(t, 2, m.ProcessCount())

	rec, err := m.KillProcess(ctx, 999999)
	assert.Equal(t, errors.ErrNotFound, errors.CodeOf(err))
	assert.Equal(t, "failure(not_found)", rec.Outcome.String())
	assert.Empty(t, killer.pids)

	rec, err = m.KillProcess(ctx, 4242)
	require.NoError(t, err)
	assert.True(t, rec.Outcome.Success())
	assert.Equal(t, []int32{4242}, killer.pids)

	log := m.ActionLog()
	require.Len(t, log, 2)
	assert.True(t, log[0].Outcome.Success())
	assert.Equal(t, errors.ErrNotFound, log[1].Outcome.Code)
}

func TestMonitorActionsAreLogged(t *testing.T) {
	m := New(testOptions(&recordingKiller{}))
	ctx := context.Background()

	_, err := m.ClearRAMCache(ctx)
	assert.Equal(t, errors.ErrPermissionDenied, errors.CodeOf(err))
	_, err = m.SetPowerProfile(ctx, model.ProfilePerformance)
	assert.Equal(t, errors.ErrUnsupported, errors.CodeOf(err))
	_, err = m.ClearStorageCache(ctx)
	assert.Equal(t, errors.ErrUnsupported, errors.CodeOf(err))

	log := m.ActionLog()
	require.Len(t, log, 3)
	assert.Equal(t, model.ActionClearStorageCache, log[0].Kind)
	assert.Equal(t, "failure(permission_denied)", log[2].Outcome.String())
}

func TestFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Battery = false
	cfg.StorageCacheDirs = []string{"/tmp/lonitor-cache"}

	opts := FromConfig(cfg)
	assert.Nil(t, opts.Sources.Battery)
	assert.NotNil(t, opts.Sources.CPU)
	assert.Equal(t, cfg.Interval, opts.Sampler.Interval)
	assert.Equal(t, cfg.Thresholds, opts.Thresholds)
	assert.Equal(t, &action.CacheDirs{Dirs: []string{"/tmp/lonitor-cache"}}, opts.Actions.Storage)
	assert.NotNil(t, opts.Actions.Power)
}
