// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package embedding

import (
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// clipMean and clipStd are the per-channel normalization constants spec
// §4.4 specifies, in R, G, B order.
var clipMean = [3]float32{0.48145466, 0.4578275, 0.40821073}
var clipStd = [3]float32{0.26862954, 0.26130258, 0.27577711}

const inputSide = 224

// preprocessImage reproduces spec §4.4's bit-faithful preprocessing:
// center-crop to a square using the shorter side, bilinear antialiased
// resize to 224x224, per-channel normalize, arrange as NCHW [1,3,224,224]
// with R,G,B channel order, row-major within each plane.
func preprocessImage(path string) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return nil, err
	}

	cropped := centerCropSquare(src)
	resized := image.NewRGBA(image.Rect(0, 0, inputSide, inputSide))
	draw.BiLinear.Scale(resized, resized.Bounds(), cropped, cropped.Bounds(), draw.Over, nil)

	out := make([]float32, 3*inputSide*inputSide)
	plane := inputSide * inputSide
	for y := 0; y < inputSide; y++ {
		for x := 0; x < inputSide; x++ {
			r, g, b, _ := resized.At(x, y).RGBA()
			// image.Color.RGBA() returns 16-bit-scaled values; reduce to 8-bit.
			rf := float32(r>>8) / 255
			gf := float32(g>>8) / 255
			bf := float32(b>>8) / 255
			idx := y*inputSide + x
			out[0*plane+idx] = (rf - clipMean[0]) / clipStd[0]
			out[1*plane+idx] = (gf - clipMean[1]) / clipStd[1]
			out[2*plane+idx] = (bf - clipMean[2]) / clipStd[2]
		}
	}
	return out, nil
}

// centerCropSquare crops src to a centered square using the shorter side.
func centerCropSquare(src image.Image) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	side := w
	if h < side {
		side = h
	}
	x0 := b.Min.X + (w-side)/2
	y0 := b.Min.Y + (h-side)/2
	rect := image.Rect(x0, y0, x0+side, y0+side)

	type subImager interface {
		SubImage(r image.Rectangle) image.Image
	}
	if si, ok := src.(subImager); ok {
		return si.SubImage(rect)
	}
	dst := image.NewRGBA(image.Rect(0, 0, side, side))
	draw.Draw(dst, dst.Bounds(), src, rect.Min, draw.Src)
	return dst
}
