//go:build linux

package dataflash

import (
	"os"

	"golang.org/x/sys/unix"
)

func openLog(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	// Logs are scanned front to back once per extraction; a hint only, so the
	// error is ignored.
	_ = unix.Fadvise(int(f.Fd()), 0, 0, unix.FADV_SEQUENTIAL)
	return f, nil
}
