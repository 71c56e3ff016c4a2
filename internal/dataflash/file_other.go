//go:build !linux

package dataflash

import "os"

func openLog(path string) (*os.File, error) {
	return os.Open(path)
}
