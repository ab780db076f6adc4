package source

import (
	"context"
	"strings"
	"time"

	"github.com/lonitor/lonitor/internal/model"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/net"
)

// Options selects and configures the host adapters.
type Options struct {
	DiskPath    string
	Battery     bool
	Temperature bool
	SysfsRoot   string // "/sys" unless testing
}

// Host returns the adapters backed by gopsutil and sysfs.
func Host(opts Options) Set {
	if opts.DiskPath == "" {
		opts.DiskPath = "/"
	}
	if opts.SysfsRoot == "" {
		opts.SysfsRoot = "/sys"
	}

	set := Set{
		CPU:    NewCPUTimes(),
		Memory: Func[model.Memory](memory),
		Disk:   diskUsage(opts.DiskPath),
		DiskIO: Func[model.IOCounters](diskCounters),
		Net:    Func[model.NetCounters](netCounters),
		Load:   Func[model.Load](loadAvg),
		Uptime: Func[time.Duration](uptime),
	}
	if opts.Temperature {
		set.Temp = &Thermal{Root: opts.SysfsRoot + "/class/thermal", Fallback: sensorTemps}
	}
	if opts.Battery {
		set.Battery = &PowerSupply{Root: opts.SysfsRoot + "/class/power_supply"}
	}
	return set
}

func memory(ctx context.Context) (model.Memory, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return model.Memory{}, unavailable(err)
	}
	out := model.Memory{Used: vm.Used, Total: vm.Total}
	if swap, err := mem.SwapMemoryWithContext(ctx); err == nil {
		out.SwapUsed, out.SwapTotal = swap.Used, swap.Total
	}
	return out, nil
}

func diskUsage(path string) Func[model.Disk] {
	return func(ctx context.Context) (model.Disk, error) {
		u, err := disk.UsageWithContext(ctx, path)
		if err != nil {
			return model.Disk{}, unavailable(err)
		}
		return model.Disk{Path: path, Used: u.Used, Total: u.Total}, nil
	}
}

// diskCounters sums raw read/write bytes over whole block devices.
func diskCounters(ctx context.Context) (model.IOCounters, error) {
	stats, err := disk.IOCountersWithContext(ctx)
	if err != nil {
		return model.IOCounters{}, unavailable(err)
	}
	if len(stats) == 0 {
		return model.IOCounters{}, absent("block devices")
	}
	names := make(map[string]bool, len(stats))
	for name := range stats {
		names[name] = true
	}
	var out model.IOCounters
	for name, st := range stats {
		if skipDevice(name) || isPartition(name, names) {
			continue
		}
		out.Read += st.ReadBytes
		out.Written += st.WriteBytes
	}
	return out, nil
}

func skipDevice(name string) bool {
	return strings.HasPrefix(name, "loop") || strings.HasPrefix(name, "ram") || strings.HasPrefix(name, "zram")
}

// isPartition reports whether name is a partition of another listed device
// (sda1 of sda, nvme0n1p2 of nvme0n1), so bytes are not counted twice.
func isPartition(name string, all map[string]bool) bool {
	base := strings.TrimRight(name, "0123456789")
	if base == name || base == "" {
		return false
	}
	if all[base] {
		return true
	}
	if strings.HasSuffix(base, "p") {
		parent := strings.TrimSuffix(base, "p")
		if parent != "" && strings.ContainsAny(parent[len(parent)-1:], "0123456789") && all[parent] {
			return true
		}
	}
	return false
}

func netCounters(ctx context.Context) (model.NetCounters, error) {
	stats, err := net.IOCountersWithContext(ctx, false)
	if err != nil {
		return model.NetCounters{}, unavailable(err)
	}
	if len(stats) == 0 {
		return model.NetCounters{}, absent("network interfaces")
	}
	return model.NetCounters{Sent: stats[0].BytesSent, Recv: stats[0].BytesRecv}, nil
}

func loadAvg(ctx context.Context) (model.Load, error) {
	avg, err := load.AvgWithContext(ctx)
	if err != nil {
		return model.Load{}, unavailable(err)
	}
	return model.Load{Load1: avg.Load1, Load5: avg.Load5, Load15: avg.Load15}, nil
}

func uptime(ctx context.Context) (time.Duration, error) {
	secs, err := host.UptimeWithContext(ctx)
	if err != nil {
		return 0, unavailable(err)
	}
	return time.Duration(secs) * time.Second, nil
}
