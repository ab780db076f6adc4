package source

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v3/host"
)

// cpuZoneTypes rank thermal zone types that track the CPU package.
var cpuZoneTypes = []string{"x86_pkg_temp", "coretemp", "k10temp", "cpu-thermal", "cpu_thermal", "soc_thermal", "acpitz"}

// Thermal reads the CPU temperature from sysfs thermal zones. When no zone is
// readable it asks Fallback (hwmon sensors through gopsutil).
type Thermal struct {
	Root     string
	Fallback func(ctx context.Context) (float64, error)
}

func (t *Thermal) Sample(ctx context.Context) (float64, error) {
	if v, ok := t.fromZones(); ok {
		return v, nil
	}
	if t.Fallback != nil {
		return t.Fallback(ctx)
	}
	return 0, absent("thermal zone")
}

func (t *Thermal) fromZones() (float64, bool) {
	zones, _ := filepath.Glob(filepath.Join(t.Root, "thermal_zone*"))
	sort.Strings(zones)

	best, bestRank := -1.0, len(cpuZoneTypes)+1
	for _, zone := range zones {
		raw, err := os.ReadFile(filepath.Join(zone, "temp"))
		if err != nil {
			continue
		}
		milli, err := strconv.ParseFloat(strings.TrimSpace(string(raw)), 64)
		if err != nil {
			continue
		}
		rank := len(cpuZoneTypes)
		if typ, err := os.ReadFile(filepath.Join(zone, "type")); err == nil {
			for i, want := range cpuZoneTypes {
				if strings.TrimSpace(string(typ)) == want {
					rank = i
					break
				}
			}
		}
		if rank < bestRank {
			best, bestRank = milli/1000, rank
		}
	}
	return best, bestRank <= len(cpuZoneTypes)
}

// sensorTemps picks a CPU package sensor from hwmon.
func sensorTemps(ctx context.Context) (float64, error) {
	temps, err := host.SensorsTemperaturesWithContext(ctx)
	if len(temps) == 0 {
		if err != nil {
			return 0, unavailable(err)
		}
		return 0, absent("temperature sensor")
	}
	for _, prefix := range []string{"coretemp_package", "k10temp_tctl", "coretemp", "k10temp", "cpu"} {
		for _, s := range temps {
			if strings.HasPrefix(s.SensorKey, prefix) && s.Temperature > 0 {
				return s.Temperature, nil
			}
		}
	}
	return 0, absent("cpu temperature sensor")
}
