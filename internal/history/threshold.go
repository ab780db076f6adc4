package history

import (
	"github.com/lonitor/lonitor/internal/errors"
	"github.com/lonitor/lonitor/internal/model"
)

// Band is the severity of a percentage reading. Presentation layers pick colors.
type Band int

const (
	BandNormal Band = iota
	BandWarning
	BandCritical
	BandUnknown // no data
)

func (b Band) String() string {
	switch b {
	case BandNormal:
		return "normal"
	case BandWarning:
		return "warning"
	case BandCritical:
		return "critical"
	default:
		return "unknown"
	}
}

func (b Band) MarshalText() ([]byte, error) { return []byte(b.String()), nil }

// Thresholds are the cutoffs between bands, in percent.
type Thresholds struct {
	Warning  float64 `mapstructure:"warning"`
	Critical float64 `mapstructure:"critical"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{Warning: 60, Critical: 85}
}

func (t Thresholds) Validate() error {
	if t.Warning < 0 || t.Critical > 100 || t.Warning >= t.Critical {
		return errors.New().WithData(errors.ErrInvalidConfig, t)
	}
	return nil
}

// Classify bands v: below Warning is normal, below Critical is warning, else critical.
func (t Thresholds) Classify(v float64) Band {
	switch {
	case v < t.Warning:
		return BandNormal
	case v < t.Critical:
		return BandWarning
	default:
		return BandCritical
	}
}

// ClassifyReading bands a percentage reading, unknown when the source had no data.
func (t Thresholds) ClassifyReading(v float64, ok bool) Band {
	if !ok {
		return BandUnknown
	}
	return t.Classify(v)
}

// ClassifyBattery bands remaining charge. A charging battery is always normal;
// otherwise the drained share is banded.
func (t Thresholds) ClassifyBattery(r model.Reading[model.Battery]) Band {
	if !r.Ok() {
		return BandUnknown
	}
	if r.Value.Charging {
		return BandNormal
	}
	return t.Classify(100 - r.Value.Percent)
}

// ClassifySnapshot bands a metric of snap. Non-percentage metrics are unknown.
func (t Thresholds) ClassifySnapshot(snap model.Snapshot, m model.Metric) Band {
	switch m {
	case model.MetricCPU:
		return t.ClassifyReading(snap.CPUPercent())
	case model.MetricMemory:
		return t.ClassifyReading(snap.MemoryPercent())
	case model.MetricDisk:
		return t.ClassifyReading(snap.DiskPercent())
	case model.MetricBattery:
		return t.ClassifyBattery(snap.Battery)
	}
	return BandUnknown
}
