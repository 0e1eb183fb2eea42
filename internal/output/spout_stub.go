//go:build !windows

package output

import "fmt"

func DefaultSpout() TextureBridge {
	return missingBridge{err: fmt.Errorf("%w: Spout is Windows-only", ErrUnavailable)}
}
