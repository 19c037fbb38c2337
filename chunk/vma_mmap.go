//go:build linux || darwin || freebsd || netbsd || openbsd

package chunk

import "golang.org/x/sys/unix"

func reserveRegion(size int) ([]byte, error) {
	if size == 0 {
		return []byte{}, nil
	}

	return unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
}

func releaseRegion(region []byte) error {
	if len(region) == 0 {
		return nil
	}

	return unix.Munmap(region)
}

// discardPages lets the kernel reclaim the physical pages behind the range. The range stays mapped.
func discardPages(pages []byte) error {
	if len(pages) == 0 {
		return nil
	}

	return unix.Madvise(pages, unix.MADV_DONTNEED)
}
