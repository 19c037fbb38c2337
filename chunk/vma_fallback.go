//go:build !(linux || darwin || freebsd || netbsd || openbsd)

package chunk

func reserveRegion(size int) ([]byte, error) {
	return make([]byte, size), nil
}

func releaseRegion(region []byte) error {
	return nil
}

func discardPages(pages []byte) error {
	clear(pages)
	return nil
}
