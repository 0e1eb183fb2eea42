// Package gpu is the narrow slice of a graphics device the engine core needs:
// textures it can draw into and blit between, synchronous pixel readback for
// the network sinks, and pixel-pack buffers for asynchronous readback.
package gpu

import "errors"

var (
	// ErrNotReady is returned by Map when no readback has landed in the buffer.
	ErrNotReady = errors.New("gpu: buffer has no completed readback")
	// ErrSize is returned when a destination is too small for the source.
	ErrSize = errors.New("gpu: size mismatch")
	// ErrForeign is returned for handles created by another device.
	ErrForeign = errors.New("gpu: handle belongs to another device")
)

type Texture interface {
	ID() uint32
	Width() int
	Height() int
}

// Buffer is a pixel-pack buffer of a fixed byte size.
type Buffer interface {
	ID() uint32
	Size() int
}

type Device interface {
	NewTexture(w, h int) (Texture, error)
	// Upload replaces the texture contents with tightly packed RGBA rows.
	Upload(tex Texture, rgba []byte) error
	// Blit scales src over the whole of dst with linear filtering.
	Blit(dst, src Texture) error
	// ReadPixels copies the texture as RGBA into dst (len >= w*h*4).
	ReadPixels(tex Texture, dst []byte) error
	ReleaseTexture(tex Texture)

	NewBuffer(size int) (Buffer, error)
	// ReadAsync queues a readback of src into buf. The data becomes visible to
	// Map some time later; callers read it back one frame late.
	ReadAsync(src Texture, buf Buffer) error
	// Map exposes the buffer contents until Unmap. The slice must not be
	// retained after Unmap.
	Map(buf Buffer) ([]byte, error)
	Unmap(buf Buffer)
	ReleaseBuffer(buf Buffer)
}

// FrameBytes is the RGBA byte size of a w x h frame.
func FrameBytes(w, h int) int { return w * h * 4 }
