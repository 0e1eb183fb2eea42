//go:build !darwin

package output

import "fmt"

func DefaultSyphon() TextureBridge {
	return missingBridge{err: fmt.Errorf("%w: Syphon is macOS-only", ErrUnavailable)}
}
