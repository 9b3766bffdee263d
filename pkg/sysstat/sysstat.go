// Package sysstat samples host CPU, memory, and disk usage for the
// operations HTTP surface (see pkg/httpapi).
package sysstat

import (
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

type CPU struct {
	Percent float64 `json:"percent"`
}

type Memory struct {
	Total       uint64  `json:"total"`
	Used        uint64  `json:"used"`
	UsedPercent float64 `json:"usedPercent"`

	SwapTotal       uint64  `json:"swapTotal"`
	SwapUsed        uint64  `json:"swapUsed"`
	SwapUsedPercent float64 `json:"swapUsedPercent"`
}

type Disk struct {
	Used        uint64  `json:"used"`
	Total       uint64  `json:"total"`
	UsedPercent float64 `json:"usedPercent"`
}

func CPUStatus() (CPU, error) {
	list, err := cpu.Percent(50*time.Millisecond, false)
	if err != nil {
		return CPU{}, err
	}
	return CPU{Percent: list[0]}, nil
}

func MemoryStatus() (Memory, error) {
	virt, err := mem.VirtualMemory()
	if err != nil {
		return Memory{}, err
	}
	swap, err := mem.SwapMemory()
	if err != nil {
		return Memory{}, err
	}
	return Memory{
		Total:           virt.Total,
		Used:            virt.Used,
		UsedPercent:     virt.UsedPercent,
		SwapTotal:       swap.Total,
		SwapUsed:        swap.Used,
		SwapUsedPercent: swap.UsedPercent,
	}, nil
}

// DiskStatus reports usage for the filesystem containing path — the
// capture archive's storage root.
func DiskStatus(path string) (Disk, error) {
	usage, err := disk.Usage(path)
	if err != nil {
		return Disk{}, err
	}
	return Disk{
		Used:        usage.Used,
		Total:       usage.Total,
		UsedPercent: usage.UsedPercent,
	}, nil
}
