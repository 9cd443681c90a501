//go:build windows

package archive

import "golang.org/x/sys/windows"

// diskProber reads free space through GetDiskFreeSpaceEx.
type diskProber struct{}

// NewProber returns the platform free-space prober.
func NewProber() SpaceProber {
	return diskProber{}
}

func (diskProber) FreeBytes(path string) (int64, error) {
	var free, total, avail uint64
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return 0, err
	}
	if err := windows.GetDiskFreeSpaceEx(p, &free, &total, &avail); err != nil {
		return 0, err
	}
	return int64(free), nil
}
