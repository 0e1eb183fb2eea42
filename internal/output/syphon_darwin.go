//go:build darwin

package output

import "errors"

// DefaultSyphon is used when Options.Syphon is nil. The Syphon.framework
// binding is linked by the host application and passed in through Options;
// without it construction fails and is retried.
func DefaultSyphon() TextureBridge {
	return missingBridge{err: errors.New("Syphon.framework binding not provided")}
}
