/* ipp-print - IPP client and printer raster toolkit
 *
 * Copyright (C) 2020 and up by Alexander Pevzner (pzz@apevzner.com)
 * See LICENSE for license terms and conditions
 *
 * Image renderer
 */

package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder
	"io"
	"math"

	_ "golang.org/x/image/bmp" // Register BMP decoder
	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
	_ "golang.org/x/image/tiff" // Register TIFF decoder
	_ "golang.org/x/image/webp" // Register WebP decoder

	"github.com/OpenPrinting/ipp-print/printparams"
)

// Source renders pages of a document
type Source interface {
	// Pages returns count of pages in the document
	Pages() int

	// Render renders 1-based page of the document, fitted to
	// the paper of params
	Render(page int, params *printparams.PrintParameters) (*Surface, error)
}

// ErrNoPage is returned when Source is asked for a page it doesn't have
var ErrNoPage = errors.New("page out of range")

// ImageSource is the Source of one page per image
type ImageSource struct {
	images []image.Image
}

// NewImageSource creates ImageSource of images
func NewImageSource(images ...image.Image) *ImageSource {
	return &ImageSource{images: images}
}

// DecodeImage creates single-page ImageSource from image file data
func DecodeImage(r io.Reader) (*ImageSource, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("image: %w", err)
	}

	return NewImageSource(img), nil
}

// DecodeGIF creates ImageSource from all frames of GIF file
func DecodeGIF(r io.Reader) (*ImageSource, error) {
	g, err := gif.DecodeAll(r)
	if err != nil {
		return nil, fmt.Errorf("gif: %w", err)
	}

	src := &ImageSource{}
	for _, frame := range g.Image {
		src.images = append(src.images, frame)
	}

	return src, nil
}

// Pages returns count of pages
func (src *ImageSource) Pages() int {
	return len(src.images)
}

// Render renders the page: the image is scaled to fit the paper
// keeping its aspect ratio, centered, and landscape images are
// rotated when the paper is portrait
func (src *ImageSource) Render(page int, params *printparams.PrintParameters) (*Surface, error) {
	if page < 1 || page > len(src.images) {
		return nil, fmt.Errorf("%w: %d of %d", ErrNoPage, page, len(src.images))
	}

	img := src.images[page-1]
	gray := params.ColorMode.Colors() == 1

	w, h := params.PaperSizeWInPixels(), params.PaperSizeHInPixels()
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("invalid paper size %dx%d", w, h)
	}

	var dst draw.Image
	var surface *Surface
	if gray {
		g := image.NewGray(image.Rect(0, 0, w, h))
		dst = g
		surface = &Surface{Width: w, Height: h, Gray: true, Pix: g.Pix}
	} else {
		dst = image.NewRGBA(image.Rect(0, 0, w, h))
	}

	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White),
		image.Point{}, draw.Src)

	sr := img.Bounds()
	if sr.Dx() == w && sr.Dy() == h {
		// Already page-sized, as PNM pages usually are
		draw.Draw(dst, dst.Bounds(), img, sr.Min, draw.Over)
	} else {
		draw.CatmullRom.Transform(dst, fitTransform(sr, params),
			img, sr, draw.Over, nil)
	}

	if surface == nil {
		surface = surfaceFromRGBA(dst.(*image.RGBA))
	}

	return surface, nil
}

// fitTransform returns the source to destination transformation
// that fits the image of bounds sr into the paper
func fitTransform(sr image.Rectangle, params *printparams.PrintParameters) f64.Aff3 {
	resX, resY := float64(params.HwResW), float64(params.HwResH)
	pw := float64(params.PaperSizeWInPixels())
	ph := float64(params.PaperSizeHInPixels())

	iw, ih := float64(sr.Dx()), float64(sr.Dy())

	// Rotate landscape images on portrait paper
	rotate := iw > ih && pw/resX < ph/resY
	if rotate {
		iw, ih = ih, iw
	}

	// Image pixels are square, printer pixels may be not
	scale := math.Min(pw/resX/iw, ph/resY/ih)
	kx, ky := scale*resX, scale*resY

	offX := (pw - iw*kx) / 2
	offY := (ph - ih*ky) / 2

	minX, minY := float64(sr.Min.X), float64(sr.Min.Y)

	if rotate {
		// Clockwise: source top edge goes to the right
		return f64.Aff3{
			0, -kx, offX + kx*(iw+minY),
			ky, 0, offY - ky*minX,
		}
	}

	return f64.Aff3{
		kx, 0, offX - kx*minX,
		0, ky, offY - ky*minY,
	}
}

// surfaceFromRGBA converts RGBA image into RGB Surface
func surfaceFromRGBA(img *image.RGBA) *Surface {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	s := &Surface{Width: w, Height: h, Pix: make([]byte, w*h*3)}

	for y := 0; y < h; y++ {
		src := img.Pix[y*img.Stride:]
		dst := s.Row(y)
		for x := 0; x < w; x++ {
			dst[3*x] = src[4*x]
			dst[3*x+1] = src[4*x+1]
			dst[3*x+2] = src[4*x+2]
		}
	}

	return s
}
