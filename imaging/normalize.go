package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"

	_ "image/gif"
	_ "image/png"

	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	// MaxDimension bounds either pixel dimension of the normalized image.
	MaxDimension = 2048
	jpegQuality  = 92
)

// Normalized is the canonical payload sent to the vision model.
type Normalized struct {
	Base64   string
	MimeType string
}

// Normalize re-encodes an arbitrary raster image as a bounded JPEG flattened
// onto an opaque white background. Alpha is dropped deliberately so the model
// never sees ambiguous transparency. A decode failure is returned to the
// caller, which falls back to sending the original bytes unmodified.
func Normalize(data []byte) (*Normalized, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	scale := 1.0
	if longest := max(width, height); longest > MaxDimension {
		scale = float64(MaxDimension) / float64(longest)
	}
	outW := max(1, int(float64(width)*scale+0.5))
	outH := max(1, int(float64(height)*scale+0.5))

	dst := image.NewRGBA(image.Rect(0, 0, outW, outH))
	xdraw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, xdraw.Src)
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}

	return &Normalized{
		Base64:   base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType: "image/jpeg",
	}, nil
}
