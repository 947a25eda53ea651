//go:build windows || (unix && !linux && !openbsd)

package block

import "os"

func fdatasync(f *os.File) error {
	return f.Sync()
}
