// Package raster provides image codec helpers and placement math shared by
// the canvas, catalog, and import paths.
package raster

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"math"
	"net/http"
	"strings"

	_ "image/gif"
	_ "image/jpeg"

	_ "golang.org/x/image/webp"
)

// MIMEToExt maps supported raster MIME types to file extensions.
var MIMEToExt = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

var extToMIME = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// IsImagePath reports whether path has a supported raster file extension.
func IsImagePath(path string) bool {
	dot := strings.LastIndex(path, ".")
	if dot < 0 {
		return false
	}
	_, ok := extToMIME[strings.ToLower(path[dot:])]
	return ok
}

// MIMEForPath returns the MIME type for a supported image path, or empty string.
func MIMEForPath(path string) string {
	dot := strings.LastIndex(path, ".")
	if dot < 0 {
		return ""
	}
	return extToMIME[strings.ToLower(path[dot:])]
}

// EncodePNG serializes img as PNG bytes.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("raster: encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode parses encoded image bytes (png, jpeg, gif, or webp) and returns
// the image and its format name.
func Decode(data []byte) (image.Image, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("raster: decode: %w", err)
	}
	return img, format, nil
}

// DecodeConfig returns the dimensions and format of encoded image bytes
// without decoding the full pixel data.
func DecodeConfig(data []byte) (image.Config, string, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return image.Config{}, "", fmt.Errorf("raster: decode config: %w", err)
	}
	return cfg, format, nil
}

// Sniff verifies that data looks like a supported raster image and returns
// its canonical extension.
func Sniff(data []byte) (string, error) {
	detected := http.DetectContentType(data)
	mime := strings.Split(detected, ";")[0]
	ext, ok := MIMEToExt[mime]
	if !ok {
		return "", fmt.Errorf("raster: unsupported content type %s", mime)
	}
	return ext, nil
}

// FitRect computes where an iw x ih image lands on a cw x ch canvas when
// scaled to fit while preserving aspect ratio and centered: the scale factor
// is min(cw/iw, ch/ih) and the remaining space splits evenly on each axis.
func FitRect(cw, ch, iw, ih int) image.Rectangle {
	if iw <= 0 || ih <= 0 {
		return image.Rectangle{}
	}
	r := math.Min(float64(cw)/float64(iw), float64(ch)/float64(ih))
	w := int(math.Round(float64(iw) * r))
	h := int(math.Round(float64(ih) * r))
	x := (cw - w) / 2
	y := (ch - h) / 2
	return image.Rect(x, y, x+w, y+h)
}

// CompositeOnWhite flattens img onto an opaque white background of the same
// bounds. Fully opaque inputs pass through unchanged pixel-for-pixel.
func CompositeOnWhite(img image.Image) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Over)
	return out
}
