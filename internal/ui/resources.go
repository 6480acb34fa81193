package ui

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// ResourceStats holds host resource information shown on the board
type ResourceStats struct {
	CPUPercent  float64
	MemoryUsed  uint64
	MemoryTotal uint64
	MemPercent  float64
	CPUTemp     float64 // in Celsius, -1 if unavailable
	Hostname    string
}

// GetResourceStats fetches current system resource statistics
func GetResourceStats() ResourceStats {
	stats := ResourceStats{CPUTemp: -1}

	if cpuPercent, err := cpu.Percent(0, false); err == nil && len(cpuPercent) > 0 {
		stats.CPUPercent = cpuPercent[0]
	}

	if memInfo, err := mem.VirtualMemory(); err == nil {
		stats.MemoryUsed = memInfo.Used
		stats.MemoryTotal = memInfo.Total
		stats.MemPercent = memInfo.UsedPercent
	}

	if info, err := host.Info(); err == nil {
		stats.Hostname = info.Hostname
	}

	stats.CPUTemp = cpuTemperature()
	return stats
}

// cpuTemperature returns the first plausible CPU sensor reading, or -1.
func cpuTemperature() float64 {
	temps, err := host.SensorsTemperatures()
	if err != nil && len(temps) == 0 {
		return -1
	}

	for _, temp := range temps {
		key := strings.ToLower(temp.SensorKey)
		for _, name := range []string{"cpu", "coretemp", "k10temp", "package"} {
			if strings.Contains(key, name) && temp.Temperature > 0 {
				return temp.Temperature
			}
		}
	}

	// Apple Silicon reports no named CPU sensor
	if runtime.GOOS == "darwin" {
		for _, temp := range temps {
			if temp.Temperature > 0 && temp.Temperature < 120 {
				return temp.Temperature
			}
		}
	}
	return -1
}

// FormatBytes formats bytes into a human-readable string
func FormatBytes(bytes uint64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/GB)
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
