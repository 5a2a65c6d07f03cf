package extractor

import (
	"image"

	"golang.org/x/image/draw"
)

const (
	pixelMean  = 127.5
	pixelScale = 128.0
)

// CenterSquare returns the largest centered square inside r.
func CenterSquare(r image.Rectangle) image.Rectangle {
	w, h := r.Dx(), r.Dy()
	side := min(w, h)
	x0 := r.Min.X + (w-side)/2
	y0 := r.Min.Y + (h-side)/2
	return image.Rect(x0, y0, x0+side, y0+side)
}

// ImageToTensor crops img to a centered square, scales it to size x size
// with bilinear interpolation and returns a float32 slice in NHWC order
// with shape (1, size, size, 3). Channels are RGB normalized to
// roughly [-1, 1].
func ImageToTensor(img image.Image, size int) []float32 {
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, CenterSquare(img.Bounds()), draw.Src, nil)

	out := make([]float32, size*size*3)
	// RGBA Pix is already row-major, which matches NHWC
	for i, o := 0, 0; i < len(dst.Pix); i, o = i+4, o+3 {
		out[o+0] = (float32(dst.Pix[i+0]) - pixelMean) / pixelScale
		out[o+1] = (float32(dst.Pix[i+1]) - pixelMean) / pixelScale
		out[o+2] = (float32(dst.Pix[i+2]) - pixelMean) / pixelScale
	}
	return out
}
