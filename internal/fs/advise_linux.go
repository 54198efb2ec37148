//go:build linux

package fs

import "golang.org/x/sys/unix"

// AdviseSequential hints the kernel that f will be read sequentially from
// offset for length bytes (0 means to end of file). Files that do not expose
// a descriptor are ignored. The hint is advisory; callers may ignore errors.
func AdviseSequential(f File, offset, length int64) error {
	fd, ok := f.(fder)
	if !ok {
		return nil
	}
	return unix.Fadvise(int(fd.Fd()), offset, length, unix.FADV_SEQUENTIAL)
}
