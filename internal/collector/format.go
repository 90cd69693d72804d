package collector

import "fmt"

var byteUnits = []string{"B", "KB", "MB", "GB", "TB"}

// FormatBytes форматирует объем с одним знаком после запятой: "1.5 GB"
func FormatBytes(bytes uint64) string {
	size := float64(bytes)
	unit := 0
	for size >= 1024 && unit < len(byteUnits)-1 {
		size /= 1024
		unit++
	}
	return fmt.Sprintf("%.1f %s", size, byteUnits[unit])
}

// FormatRate форматирует скорость: "5.8 MB/s"
func FormatRate(mbps float64) string {
	return fmt.Sprintf("%.1f MB/s", mbps)
}
