//go:build unix

package archive

import "golang.org/x/sys/unix"

// diskProber reads filesystem statistics via statfs.
type diskProber struct{}

// NewProber returns the platform free-space prober.
func NewProber() SpaceProber {
	return diskProber{}
}

func (diskProber) FreeBytes(path string) (int64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, err
	}
	return int64(st.Bavail) * int64(st.Bsize), nil
}
