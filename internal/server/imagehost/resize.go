package imagehost

import (
	"bytes"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"strconv"

	"golang.org/x/image/draw"
)

const autoQuality = 80

// jpegQuality maps an UploadOptions.Quality value to a JPEG quality.
func jpegQuality(q string) int {
	if n, err := strconv.Atoi(q); err == nil && n >= 1 && n <= 100 {
		return n
	}
	return autoQuality
}

// fitWithin returns the largest size with the aspect ratio of w×h that fits
// in maxW×maxH. A zero bound is unlimited. It never grows the image.
func fitWithin(w, h, maxW, maxH int) (int, int) {
	if w <= 0 || h <= 0 {
		return w, h
	}
	scale := 1.0
	if maxW > 0 && w > maxW {
		scale = float64(maxW) / float64(w)
	}
	if maxH > 0 && h > maxH {
		if s := float64(maxH) / float64(h); s < scale {
			scale = s
		}
	}
	if scale >= 1 {
		return w, h
	}
	nw, nh := int(float64(w)*scale+0.5), int(float64(h)*scale+0.5)
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}
	return nw, nh
}

// prepare shrinks data to fit opts and re-encodes it. Images already within
// bounds, and formats the standard decoders do not know, are returned as is.
func prepare(data []byte, contentType string, opts UploadOptions) ([]byte, string, error) {
	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return data, contentType, nil
	}

	b := src.Bounds()
	nw, nh := fitWithin(b.Dx(), b.Dy(), opts.MaxWidth, opts.MaxHeight)
	if nw == b.Dx() && nh == b.Dy() {
		return data, contentType, nil
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)

	var buf bytes.Buffer
	switch format {
	case "jpeg":
		err = jpeg.Encode(&buf, dst, &jpeg.Options{Quality: jpegQuality(opts.Quality)})
		contentType = "image/jpeg"
	case "gif":
		err = gif.Encode(&buf, dst, nil)
		contentType = "image/gif"
	default:
		err = png.Encode(&buf, dst)
		contentType = "image/png"
	}
	if err != nil {
		return nil, "", err
	}
	return buf.Bytes(), contentType, nil
}
