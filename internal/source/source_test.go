package source

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lonitor/lonitor/internal/errors"
	"github.com/lonitor/lonitor/internal/model"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestProbeAvailable(t *testing.T) {
	r, err := Probe[float64](context.Background(), time.Second, Func[float64](func(context.Context) (float64, error) {
		return 12.5, nil
	}))
	require.NoError(t, err)
	assert.True(t, r.Ok())
	assert.Equal(t, 12.5, r.Value)
}

func TestProbeNilAdapter(t *testing.T) {
	r, err := Probe[model.Battery](context.Background(), time.Second, nil)
	assert.Equal(t, model.Unavailable, r.Status)
	assert.Equal(t, errors.ErrUnavailable, errors.CodeOf(err))
}

func TestProbeTimesOutStuckAdapter(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	start := time.Now()
	r, err := Probe[float64](context.Background(), 20*time.Millisecond, Func[float64](func(context.Context) (float64, error) {
		<-release // ignores ctx
		return 1, nil
	}))

	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, model.TimedOut, r.Status)
	assert.Equal(t, errors.ErrTimeout, errors.CodeOf(err))
}

func TestProbeErrorBecomesUnavailable(t *testing.T) {
	r, err := Probe[float64](context.Background(), time.Second, Func[float64](func(context.Context) (float64, error) {
		return 0, stderrors.New("read /sys: no such file")
	}))
	assert.Equal(t, model.Unavailable, r.Status)
	assert.Equal(t, errors.ErrUnavailable, errors.CodeOf(err))
	assert.Zero(t, r.Value)
}

func TestProbeRecoversPanic(t *testing.T) {
	r, err := Probe[float64](context.Background(), time.Second, Func[float64](func(context.Context) (float64, error) {
		panic("boom")
	}))
	assert.Equal(t, model.Unavailable, r.Status)
	assert.Error(t, err)
}

func TestCPUTimesDelta(t *testing.T) {
	calls := [][]cpu.TimesStat{
		{{CPU: "cpu-total", User: 100, Idle: 900}},
		{{CPU: "cpu0", User: 50, Idle: 450}, {CPU: "cpu1", User: 50, Idle: 450}},
		{{CPU: "cpu-total", User: 150, Idle: 950}},
		{{CPU: "cpu0", User: 100, Idle: 450}, {CPU: "cpu1", User: 50, Idle: 500}},
	}
	c := &CPUTimes{times: func(_ context.Context, _ bool) ([]cpu.TimesStat, error) {
		out := calls[0]
		calls = calls[1:]
		return out, nil
	}}

	first, err := c.Sample(context.Background())
	assert.Equal(t, errors.ErrUnavailable, errors.CodeOf(err), "no baseline yet")
	assert.Zero(t, first.Total)

	second, err := c.Sample(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 50.0, second.Total, 1e-9)
	require.Len(t, second.PerCore, 2)
	assert.InDelta(t, 100.0, second.PerCore[0], 1e-9)
	assert.InDelta(t, 0.0, second.PerCore[1], 1e-9)
}

func TestCPUTimesFirstProbeIsUnavailable(t *testing.T) {
	c := &CPUTimes{times: func(context.Context, bool) ([]cpu.TimesStat, error) {
		return []cpu.TimesStat{{CPU: "cpu-total", User: 100, Idle: 900}}, nil
	}}

	r, err := Probe[model.CPU](context.Background(), time.Second, c)
	assert.Error(t, err)
	assert.Equal(t, model.Unavailable, r.Status)
	assert.False(t, r.Ok())

	r, err = Probe[model.CPU](context.Background(), time.Second, c)
	require.NoError(t, err)
	assert.True(t, r.Ok())
	assert.Zero(t, r.Value.Total, "no time passed between the readings")
}

func TestCPUTimesError(t *testing.T) {
	c := &CPUTimes{times: func(context.Context, bool) ([]cpu.TimesStat, error) {
		return nil, stderrors.New("no /proc/stat")
	}}
	_, err := c.Sample(context.Background())
	assert.Equal(t, errors.ErrUnavailable, errors.CodeOf(err))
}

func TestThermalPrefersCPUZone(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "thermal_zone0", "type"), "acpitz\n")
	writeFile(t, filepath.Join(root, "thermal_zone0", "temp"), "30000\n")
	writeFile(t, filepath.Join(root, "thermal_zone1", "type"), "x86_pkg_temp\n")
	writeFile(t, filepath.Join(root, "thermal_zone1", "temp"), "52500\n")

	v, err := (&Thermal{Root: root}).Sample(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 52.5, v, 1e-9)
}

func TestThermalUnknownZoneStillReads(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "thermal_zone0", "temp"), "41000")

	v, err := (&Thermal{Root: root}).Sample(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 41.0, v, 1e-9)
}

func TestThermalFallbackAndAbsent(t *testing.T) {
	root := t.TempDir()

	_, err := (&Thermal{Root: root}).Sample(context.Background())
	assert.Equal(t, errors.ErrUnavailable, errors.CodeOf(err))

	v, err := (&Thermal{Root: root, Fallback: func(context.Context) (float64, error) { return 61, nil }}).Sample(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 61.0, v)
}

func TestBattery(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "AC", "online"), "1")
	writeFile(t, filepath.Join(root, "BAT0", "capacity"), "87\n")
	writeFile(t, filepath.Join(root, "BAT0", "status"), "Discharging\n")

	b, err := (&PowerSupply{Root: root}).Sample(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 87.0, b.Percent)
	assert.False(t, b.Charging)
	assert.Equal(t, "Discharging", b.State)
}

func TestBatteryByType(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "CMB0", "type"), "Battery")
	writeFile(t, filepath.Join(root, "CMB0", "capacity"), "40")
	writeFile(t, filepath.Join(root, "CMB0", "status"), "Charging")

	b, err := (&PowerSupply{Root: root}).Sample(context.Background())
	require.NoError(t, err)
	assert.True(t, b.Charging)
}

func TestBatteryTimeRemaining(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "BAT0", "capacity"), "50\n")
	writeFile(t, filepath.Join(root, "BAT0", "status"), "Discharging\n")
	writeFile(t, filepath.Join(root, "BAT0", "energy_now"), "30000000\n")
	writeFile(t, filepath.Join(root, "BAT0", "power_now"), "12000000\n")

	b, err := (&PowerSupply{Root: root}).Sample(context.Background())
	require.NoError(t, err)
	require.True(t, b.TimeRemaining.Ok())
	assert.Equal(t, 2*time.Hour+30*time.Minute, b.TimeRemaining.Value)
}

func TestBatteryTimeRemainingFromCharge(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "BAT1", "capacity"), "20")
	writeFile(t, filepath.Join(root, "BAT1", "status"), "Discharging")
	writeFile(t, filepath.Join(root, "BAT1", "charge_now"), "1000000")
	writeFile(t, filepath.Join(root, "BAT1", "current_now"), "-2000000")

	b, err := (&PowerSupply{Root: root}).Sample(context.Background())
	require.NoError(t, err)
	require.True(t, b.TimeRemaining.Ok())
	assert.Equal(t, 30*time.Minute, b.TimeRemaining.Value)
}

func TestBatteryTimeRemainingUnknown(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "BAT0", "capacity"), "64")
	writeFile(t, filepath.Join(root, "BAT0", "status"), "Discharging")
	writeFile(t, filepath.Join(root, "BAT0", "energy_now"), "30000000")
	writeFile(t, filepath.Join(root, "BAT0", "power_now"), "0")

	b, err := (&PowerSupply{Root: root}).Sample(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.Unavailable, b.TimeRemaining.Status)

	// no rate files at all
	root = t.TempDir()
	writeFile(t, filepath.Join(root, "BAT0", "capacity"), "64")
	writeFile(t, filepath.Join(root, "BAT0", "status"), "Discharging")
	b, err = (&PowerSupply{Root: root}).Sample(context.Background())
	require.NoError(t, err)
	assert.False(t, b.TimeRemaining.Ok())
}

func TestBatteryPluggedInHasNoTimeRemaining(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "BAT0", "capacity"), "90")
	writeFile(t, filepath.Join(root, "BAT0", "status"), "Charging")
	writeFile(t, filepath.Join(root, "BAT0", "energy_now"), "30000000")
	writeFile(t, filepath.Join(root, "BAT0", "power_now"), "12000000")

	b, err := (&PowerSupply{Root: root}).Sample(context.Background())
	require.NoError(t, err)
	assert.True(t, b.Charging)
	assert.False(t, b.TimeRemaining.Ok())
}

func TestBatteryAbsentOnDesktop(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "AC", "online"), "1")

	_, err := (&PowerSupply{Root: root}).Sample(context.Background())
	assert.Equal(t, errors.ErrUnavailable, errors.CodeOf(err))

	_, err = (&PowerSupply{Root: filepath.Join(root, "missing")}).Sample(context.Background())
	assert.Equal(t, errors.ErrUnavailable, errors.CodeOf(err))
}

func TestIsPartition(t *testing.T) {
	all := map[string]bool{"sda": true, "sda1": true, "nvme0n1": true, "nvme0n1p2": true, "md0": true, "mmcblk0": true, "mmcblk0p1": true}

	assert.True(t, isPartition("sda1", all))
	assert.True(t, isPartition("nvme0n1p2", all))
	assert.True(t, isPartition("mmcblk0p1", all))
	assert.False(t, isPartition("sda", all))
	assert.False(t, isPartition("nvme0n1", all))
	assert.False(t, isPartition("md0", all))
	assert.True(t, skipDevice("loop3"))
}

func TestHostRespectsToggles(t *testing.T) {
	set := Host(Options{Battery: false, Temperature: false})
	assert.Nil(t, set.Battery)
	assert.Nil(t, set.Temp)
	assert.NotNil(t, set.CPU)

	set = Host(Options{Battery: true, Temperature: true, SysfsRoot: "/nonexistent"})
	require.NotNil(t, set.Battery)
	_, err := set.Battery.Sample(context.Background())
	assert.Error(t, err)
}
