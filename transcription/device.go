package transcription

import (
	"context"
	"fmt"
	"runtime"

	"github.com/shirou/gopsutil/v4/mem"
)

const gib = 1 << 30

// DeviceCapability describes the host the on-device backends run on.
type DeviceCapability struct {
	TotalMemory uint64 `json:"total_memory"`
	// CapableSilicon is set on hosts with a neural accelerator on the SoC.
	CapableSilicon bool   `json:"capable_silicon"`
	OS             string `json:"os"`
	Arch           string `json:"arch"`
}

// MemoryGB returns total memory in whole gibibytes.
func (d DeviceCapability) MemoryGB() int {
	return int(d.TotalMemory / gib)
}

// DetectDevice inspects the current host.
func DetectDevice(ctx context.Context) (DeviceCapability, error) {
	d := DeviceCapability{
		OS:             runtime.GOOS,
		Arch:           runtime.GOARCH,
		CapableSilicon: runtime.GOOS == "darwin" && runtime.GOARCH == "arm64",
	}
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return d, fmt.Errorf("read virtual memory: %w", err)
	}
	d.TotalMemory = vm.Total
	return d, nil
}
