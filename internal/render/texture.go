package render

import (
	"github.com/coreman2200/shadecore/internal/gpu"
)

// TextureDriver packs finished frames into an RGBA texture on a gpu.Device.
// The texture is recreated when the frame size changes.
type TextureDriver struct {
	Dev gpu.Device
	Tex gpu.Texture
	pix []byte
}

func NewTextureDriver(dev gpu.Device) *TextureDriver { return &TextureDriver{Dev: dev} }

func clamp255(x float32) byte {
	if x <= 0 {
		return 0
	}
	if x >= 1 {
		return 255
	}
	return byte(x*255.0 + 0.5)
}

func (d *TextureDriver) Write(buf []Color, dim Dimensions) error {
	if d.Tex == nil || d.Tex.Width() != dim.W || d.Tex.Height() != dim.H {
		if d.Tex != nil {
			d.Dev.ReleaseTexture(d.Tex)
			d.Tex = nil
		}
		tex, err := d.Dev.NewTexture(dim.W, dim.H)
		if err != nil {
			return err
		}
		d.Tex = tex
		d.pix = make([]byte, gpu.FrameBytes(dim.W, dim.H))
	}
	for i, c := range buf {
		o := i * 4
		d.pix[o+0] = clamp255(c.R)
		d.pix[o+1] = clamp255(c.G)
		d.pix[o+2] = clamp255(c.B)
		d.pix[o+3] = 255
	}
	return d.Dev.Upload(d.Tex, d.pix)
}

// Close releases the texture.
func (d *TextureDriver) Close() {
	if d.Tex != nil {
		d.Dev.ReleaseTexture(d.Tex)
		d.Tex = nil
	}
}
