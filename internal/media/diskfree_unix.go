//go:build !windows

package media

import "golang.org/x/sys/unix"

// freeBytes reports the bytes available to an unprivileged user on the
// volume holding path.
func freeBytes(path string) (uint64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, err
	}
	return uint64(st.Bavail) * uint64(st.Bsize), nil
}
