package model

// ProcessInfo is a ranked entry of the process view. Entries are rebuilt every
// refresh; a PID may be reused by the OS between refreshes.
type ProcessInfo struct {
	PID           int32   `json:"pid"`
	Name          string  `json:"name"`
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
}
