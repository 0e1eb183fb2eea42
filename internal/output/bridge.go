package output

import "errors"

// ErrUnavailable marks a sink that cannot exist on this platform. Router
// treats it as permanent for the current activation.
var ErrUnavailable = errors.New("output: sink unavailable on this platform")

// TextureHandle is a live shared-texture sender.
type TextureHandle interface {
	// Publish shares the GPU texture id. false means the send failed.
	Publish(id uint32, w, h int) bool
	Destroy()
}

// TextureBridge constructs shared-texture senders (Syphon, Spout).
type TextureBridge interface {
	Create(name string, w, h int) (TextureHandle, error)
}

// Inverter is implemented by handles that can flip the texture vertically
// on send (Spout).
type Inverter interface {
	SetInvert(bool)
}

// BridgeFunc adapts a constructor to TextureBridge.
type BridgeFunc func(name string, w, h int) (TextureHandle, error)

func (f BridgeFunc) Create(name string, w, h int) (TextureHandle, error) { return f(name, w, h) }

type missingBridge struct{ err error }

func (b missingBridge) Create(string, int, int) (TextureHandle, error) { return nil, b.err }
