package watermark

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"

	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"
)

// Stamper draws a translucent text stamp over cover images before they are
// uploaded, so downloaded previews still carry the platform mark.
type Stamper struct {
	text string
}

func NewStamper(text string) *Stamper {
	if text == "" {
		text = "SN Music"
	}
	return &Stamper{text: text}
}

// Apply decodes the image, stamps the text in the bottom-right corner and
// re-encodes it as JPEG.
func (s *Stamper) Apply(r io.Reader) ([]byte, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	bounds := img.Bounds()
	dc := gg.NewContext(bounds.Dx(), bounds.Dy())
	dc.DrawImage(img, 0, 0)

	dc.SetFontFace(basicfont.Face7x13)
	margin := 8.0
	w, h := dc.MeasureString(s.text)

	// dark backing box keeps the mark readable on light images
	dc.SetRGBA(0, 0, 0, 0.45)
	dc.DrawRectangle(float64(bounds.Dx())-w-2*margin, float64(bounds.Dy())-h-2*margin, w+2*margin, h+2*margin)
	dc.Fill()

	dc.SetRGBA(1, 1, 1, 0.9)
	dc.DrawStringAnchored(s.text, float64(bounds.Dx())-margin, float64(bounds.Dy())-margin, 1, 0)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dc.Image(), &jpeg.Options{Quality: 90}); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	return buf.Bytes(), nil
}
