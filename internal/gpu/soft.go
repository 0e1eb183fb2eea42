package gpu

import (
	"fmt"
	"image"
	"sync"
	"sync/atomic"

	"golang.org/x/image/draw"
)

// Soft is a CPU Device backed by image.RGBA. Readbacks complete immediately
// but are still only observable through Map, so callers behave the same as
// on a real device.
type Soft struct {
	next atomic.Uint32
	mu   sync.Mutex
	// Fail, when set, is consulted by Map; returning true simulates a failed
	// mapping.
	Fail func(Buffer) bool
}

func NewSoft() *Soft { return &Soft{} }

type softTexture struct {
	id  uint32
	img *image.RGBA
}

func (t *softTexture) ID() uint32  { return t.id }
func (t *softTexture) Width() int  { return t.img.Rect.Dx() }
func (t *softTexture) Height() int { return t.img.Rect.Dy() }

// Image exposes the pixels of a Soft texture, nil for foreign handles.
func Image(tex Texture) *image.RGBA {
	if t, ok := tex.(*softTexture); ok {
		return t.img
	}
	return nil
}

type softBuffer struct {
	id     uint32
	data   []byte
	ready  bool
	mapped bool
}

func (b *softBuffer) ID() uint32 { return b.id }
func (b *softBuffer) Size() int  { return len(b.data) }

func (d *Soft) NewTexture(w, h int) (Texture, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("gpu: invalid texture size %dx%d", w, h)
	}
	return &softTexture{id: d.next.Add(1), img: image.NewRGBA(image.Rect(0, 0, w, h))}, nil
}

func (d *Soft) Upload(tex Texture, rgba []byte) error {
	t, ok := tex.(*softTexture)
	if !ok {
		return ErrForeign
	}
	if len(rgba) < len(t.img.Pix) {
		return fmt.Errorf("%w: upload %d bytes into %dx%d", ErrSize, len(rgba), t.Width(), t.Height())
	}
	copy(t.img.Pix, rgba)
	return nil
}

func (d *Soft) Blit(dst, src Texture) error {
	dt, ok1 := dst.(*softTexture)
	st, ok2 := src.(*softTexture)
	if !ok1 || !ok2 {
		return ErrForeign
	}
	if dt.img.Rect.Eq(st.img.Rect) {
		copy(dt.img.Pix, st.img.Pix)
		return nil
	}
	draw.BiLinear.Scale(dt.img, dt.img.Rect, st.img, st.img.Rect, draw.Src, nil)
	return nil
}

func (d *Soft) ReadPixels(tex Texture, dst []byte) error {
	t, ok := tex.(*softTexture)
	if !ok {
		return ErrForeign
	}
	if len(dst) < len(t.img.Pix) {
		return fmt.Errorf("%w: read %dx%d into %d bytes", ErrSize, t.Width(), t.Height(), len(dst))
	}
	copy(dst, t.img.Pix)
	return nil
}

func (d *Soft) ReleaseTexture(Texture) {}

func (d *Soft) NewBuffer(size int) (Buffer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("gpu: invalid buffer size %d", size)
	}
	return &softBuffer{id: d.next.Add(1), data: make([]byte, size)}, nil
}

func (d *Soft) ReadAsync(src Texture, buf Buffer) error {
	t, ok1 := src.(*softTexture)
	b, ok2 := buf.(*softBuffer)
	if !ok1 || !ok2 {
		return ErrForeign
	}
	if len(b.data) < len(t.img.Pix) {
		return fmt.Errorf("%w: readback %dx%d into %d byte buffer", ErrSize, t.Width(), t.Height(), len(b.data))
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	copy(b.data, t.img.Pix)
	b.ready = true
	return nil
}

func (d *Soft) Map(buf Buffer) ([]byte, error) {
	b, ok := buf.(*softBuffer)
	if !ok {
		return nil, ErrForeign
	}
	if d.Fail != nil && d.Fail(buf) {
		return nil, fmt.Errorf("gpu: map buffer %d failed", b.id)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if !b.ready {
		return nil, ErrNotReady
	}
	b.mapped = true
	return b.data, nil
}

func (d *Soft) Unmap(buf Buffer) {
	if b, ok := buf.(*softBuffer); ok {
		d.mu.Lock()
		b.mapped = false
		d.mu.Unlock()
	}
}

func (d *Soft) ReleaseBuffer(buf Buffer) {
	if b, ok := buf.(*softBuffer); ok {
		d.mu.Lock()
		b.data, b.ready = nil, false
		d.mu.Unlock()
	}
}
