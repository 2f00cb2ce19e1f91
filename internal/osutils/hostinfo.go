// Package osutils provides host identification and OS integration helpers.
package osutils

import (
	"context"
	"fmt"
	"runtime"

	"github.com/shirou/gopsutil/v4/host"
)

// Info identifies the host in the handshake reply
type Info struct {
	OS      string
	Version string
	Arch    string
}

// String renders the info as "os-version-arch"
func (i Info) String() string {
	return fmt.Sprintf("%s-%s-%s", i.OS, i.Version, i.Arch)
}

// hostInfo is swapped out in tests
var hostInfo = host.InfoWithContext

// HostInfo queries the operating system name, version and CPU architecture.
// Missing values fall back to the Go runtime's GOOS and GOARCH, so the
// returned Info is usable even when err is non-nil.
func HostInfo(ctx context.Context) (Info, error) {
	info := Info{
		OS:      runtime.GOOS,
		Version: "unknown",
		Arch:    runtime.GOARCH,
	}

	stat, err := hostInfo(ctx)
	if err != nil {
		return info, fmt.Errorf("query host info: %w", err)
	}

	if stat.Platform != "" {
		info.OS = stat.Platform
	} else if stat.OS != "" {
		info.OS = stat.OS
	}
	if stat.PlatformVersion != "" {
		info.Version = stat.PlatformVersion
	} else if stat.KernelVersion != "" {
		info.Version = stat.KernelVersion
	}
	if stat.KernelArch != "" {
		info.Arch = stat.KernelArch
	}
	return info, nil
}
