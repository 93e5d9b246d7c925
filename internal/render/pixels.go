// Package render turns lattice state into pixels, both for PNG frames and
// for the live viewer.
package render

import (
	"image"
	"image/color"
)

// Default spin colours.
var (
	UpColor   color.Color = color.RGBA{R: 240, G: 240, B: 232, A: 255}
	DownColor color.Color = color.RGBA{R: 24, G: 28, B: 40, A: 255}
)

// DegreePalette colours sites by neighbour count, 0 through 8. Free sites are
// red so they stand out.
var DegreePalette = []color.RGBA{
	{R: 200, G: 40, B: 40, A: 255},
	{R: 40, G: 30, B: 70, A: 255},
	{R: 60, G: 50, B: 110, A: 255},
	{R: 70, G: 90, B: 150, A: 255},
	{R: 80, G: 140, B: 170, A: 255},
	{R: 100, G: 180, B: 160, A: 255},
	{R: 150, G: 210, B: 130, A: 255},
	{R: 210, G: 225, B: 110, A: 255},
	{R: 250, G: 240, B: 120, A: 255},
}

// fillBinaryRGBA converts binary cell data (0/1) into RGBA pixels in buf.
func fillBinaryRGBA(buf []byte, cells []uint8, on, off color.Color) {
	rOn, gOn, bOn, aOn := on.RGBA()
	rOff, gOff, bOff, aOff := off.RGBA()
	for i, c := range cells {
		base := i * 4
		if c != 0 {
			buf[base+0] = uint8(rOn >> 8)
			buf[base+1] = uint8(gOn >> 8)
			buf[base+2] = uint8(bOn >> 8)
			buf[base+3] = uint8(aOn >> 8)
			continue
		}
		buf[base+0] = uint8(rOff >> 8)
		buf[base+1] = uint8(gOff >> 8)
		buf[base+2] = uint8(bOff >> 8)
		buf[base+3] = uint8(aOff >> 8)
	}
}

// fillPaletteRGBA converts cell values into RGBA pixels using a palette.
// Values past the end of the palette use its last colour. When the palette
// is empty the buffer is cleared to transparent black.
func fillPaletteRGBA(buf []byte, cells []uint8, palette []color.RGBA) {
	if len(palette) == 0 {
		clear(buf[:len(cells)*4])
		return
	}
	last := len(palette) - 1
	for i, c := range cells {
		idx := min(int(c), last)
		base := i * 4
		col := palette[idx]
		buf[base+0] = col.R
		buf[base+1] = col.G
		buf[base+2] = col.B
		buf[base+3] = col.A
	}
}

// SpinImage paints w×h binary cells (non-zero for spin up) into an RGBA
// image, each site drawn as a scale×scale block.
func SpinImage(cells []uint8, w, h, scale int, up, down color.Color) *image.RGBA {
	src := image.NewRGBA(image.Rect(0, 0, w, h))
	if len(cells) == w*h {
		fillBinaryRGBA(src.Pix, cells, up, down)
	}
	return upscale(src, scale)
}

// DegreeImage paints per-site neighbour counts using DegreePalette.
func DegreeImage(degrees []uint8, w, h, scale int) *image.RGBA {
	src := image.NewRGBA(image.Rect(0, 0, w, h))
	if len(degrees) == w*h {
		fillPaletteRGBA(src.Pix, degrees, DegreePalette)
	}
	return upscale(src, scale)
}

func upscale(src *image.RGBA, scale int) *image.RGBA {
	if scale <= 1 {
		return src
	}
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx()*scale, b.Dy()*scale))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			si := src.PixOffset(x, y)
			px := src.Pix[si : si+4]
			for dy := 0; dy < scale; dy++ {
				row := dst.PixOffset(x*scale, y*scale+dy)
				for dx := 0; dx < scale; dx++ {
					copy(dst.Pix[row+dx*4:row+dx*4+4], px)
				}
			}
		}
	}
	return dst
}
