package source

import (
	"bytes"
	"image"
	"image/color"
	"image/png"

	"golang.org/x/image/draw"
)

// iconEdge is the size icons are normalized to before crossing the boundary.
const iconEdge = 64

// encodeIcon converts raw ARGB pixel data (as delivered by _NET_WM_ICON) to
// a PNG scaled to iconEdge, so consumers get a predictable payload
// regardless of what size the application advertised.
func encodeIcon(argb []uint32, width, height int) ([]byte, error) {
	if width <= 0 || height <= 0 || len(argb) < width*height {
		return nil, ErrUnavailable
	}

	src := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			px := argb[y*width+x]
			src.SetNRGBA(x, y, color.NRGBA{
				A: uint8(px >> 24),
				R: uint8(px >> 16),
				G: uint8(px >> 8),
				B: uint8(px),
			})
		}
	}

	dst := src
	if width != iconEdge || height != iconEdge {
		dst = image.NewNRGBA(image.Rect(0, 0, iconEdge, iconEdge))
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
