//go:build windows

package output

import "errors"

// DefaultSpout is used when Options.Spout is nil. The Spout2 binding is
// linked by the host application and passed in through Options; without it
// construction fails and is retried.
func DefaultSpout() TextureBridge {
	return missingBridge{err: errors.New("Spout2 binding not provided")}
}
