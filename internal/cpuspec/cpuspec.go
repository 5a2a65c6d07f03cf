// Package cpuspec picks an inference thread count from the CPU brand.
// On hybrid CPUs only performance cores are counted; efficiency cores slow
// down TFLite when mixed into the same interpreter.
package cpuspec

import (
	"regexp"
	"runtime"
	"strings"

	"github.com/klauspost/cpuid/v2"
)

// CPUSpec describes the host CPU.
type CPUSpec struct {
	BrandName        string
	PerformanceCores int // 0 when the CPU is not a known hybrid design
}

var (
	intelCoreRegex  = regexp.MustCompile(`intel.*core.*i[3579]-(1[234]\d{3})`)
	intelUltraRegex = regexp.MustCompile(`intel.*core.*ultra\s+[579]\s+(?:processor\s+)?(\d{3})`)
	appleRegex      = regexp.MustCompile(`apple\s+(m[1-4](?:\s+(?:pro|max|ultra))?)`)
)

// performance core counts keyed by normalized model prefix
var (
	intelCorePCores = map[string]int{
		"12900": 8, "12700": 8, "12600": 6, "12400": 6, "12100": 4,
		"13900": 8, "13700": 8, "13600": 6, "13500": 6, "13400": 6, "13100": 4,
		"14900": 8, "14700": 8, "14600": 6, "14400": 6, "14100": 4,
	}
	intelUltraPCores = map[string]int{
		"285": 8, "265": 8, "255": 8, "235": 6, "225": 4,
	}
	applePCores = map[string]int{
		"m1": 4, "m1 pro": 8, "m1 max": 8, "m1 ultra": 16,
		"m2": 4, "m2 pro": 8, "m2 max": 12, "m2 ultra": 24,
		"m3": 4, "m3 pro": 8, "m3 max": 12, "m3 ultra": 24,
		"m4": 6, "m4 pro": 8, "m4 max": 12,
	}
)

// GetCPUSpec inspects the running CPU.
func GetCPUSpec() CPUSpec {
	brand := cpuid.CPU.BrandName
	return CPUSpec{
		BrandName:        brand,
		PerformanceCores: PerformanceCores(brand),
	}
}

// GetOptimalThreadCount returns the number of interpreter threads to use.
func (c CPUSpec) GetOptimalThreadCount() int {
	available := runtime.NumCPU()
	if c.PerformanceCores > 0 {
		return min(c.PerformanceCores, available)
	}
	if cpuid.CPU.LogicalCores > 0 {
		return min(cpuid.CPU.LogicalCores, available)
	}
	return available
}

// ThreadCount resolves a configured thread count: 0 asks the CPU, anything
// above the number of CPUs is clamped.
func ThreadCount(configured int) int {
	available := runtime.NumCPU()
	if configured <= 0 {
		if n := GetCPUSpec().GetOptimalThreadCount(); n > 0 {
			return n
		}
		return available
	}
	return min(configured, available)
}

// PerformanceCores returns the P-core count for a brand string, or 0.
func PerformanceCores(brandName string) int {
	brand := strings.ToLower(brandName)

	// 12700K, 12700KF and 12700 share a core layout
	if m := intelCoreRegex.FindStringSubmatch(brand); m != nil {
		return intelCorePCores[m[1]]
	}
	if m := intelUltraRegex.FindStringSubmatch(brand); m != nil {
		return intelUltraPCores[m[1]]
	}
	if m := appleRegex.FindStringSubmatch(brand); m != nil {
		return applePCores[strings.Join(strings.Fields(m[1]), " ")]
	}
	return 0
}
