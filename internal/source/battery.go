package source

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/lonitor/lonitor/internal/model"
)

// PowerSupply reads the first battery under /sys/class/power_supply.
// Desktops without one report Unavailable.
type PowerSupply struct {
	Root string
}

func (p *PowerSupply) Sample(_ context.Context) (model.Battery, error) {
	entries, err := os.ReadDir(p.Root)
	if err != nil {
		return model.Battery{}, absent("battery")
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		dir := filepath.Join(p.Root, name)
		if !strings.HasPrefix(name, "BAT") && readTrim(filepath.Join(dir, "type")) != "Battery" {
			continue
		}
		capStr := readTrim(filepath.Join(dir, "capacity"))
		if capStr == "" {
			continue
		}
		pct, err := strconv.ParseFloat(capStr, 64)
		if err != nil {
			continue
		}
		state := readTrim(filepath.Join(dir, "status"))
		b := model.Battery{
			Percent:  clampPercent(pct),
			Charging: state == "Charging" || state == "Full" || state == "Not charging",
			State:    state,
		}
		if !b.Charging {
			b.TimeRemaining = timeToEmpty(dir)
		}
		return b, nil
	}
	return model.Battery{}, absent("battery")
}

// timeToEmpty divides the remaining energy by the current draw. Drivers expose
// either energy_now/power_now (µWh, µW) or charge_now/current_now (µAh, µA).
// A zero draw means the kernel has not measured it yet.
func timeToEmpty(dir string) model.Reading[time.Duration] {
	for _, pair := range [][2]string{{"energy_now", "power_now"}, {"charge_now", "current_now"}} {
		left, okLeft := readNumber(filepath.Join(dir, pair[0]))
		rate, okRate := readNumber(filepath.Join(dir, pair[1]))
		if !okLeft || !okRate {
			continue
		}
		rate = math.Abs(rate)
		if rate == 0 || left < 0 {
			return model.Missing[time.Duration](model.Unavailable)
		}
		return model.Have(time.Duration(left / rate * float64(time.Hour)).Round(time.Second))
	}
	return model.Missing[time.Duration](model.Unavailable)
}

func readNumber(path string) (float64, bool) {
	s := readTrim(path)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	return v, err == nil
}

func readTrim(path string) string {
	b, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}
