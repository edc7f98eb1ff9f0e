package codec

import (
	"bytes"
	"image"
	"image/jpeg"
	"image/png"
	diffimage "snapshot-diff/internal/diff/image"
	"strings"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/xerrors"
)

type Format int

const (
	JPEG Format = iota
	PNG
)

func (f Format) String() string {
	switch f {
	case PNG:
		return "png"
	case JPEG:
		return "jpeg"
	default:
		return "unknown"
	}
}

// Classify picks the decoder for a path by its extension. Anything that is not .png is
// treated as JPEG because listing only yields png, jpg and jpeg files.
func Classify(path string) Format {
	if strings.HasSuffix(strings.ToLower(path), ".png") {
		return PNG
	}
	return JPEG
}

// Decode returns PNG data as 4-channel non-premultiplied RGBA and JPEG data as 3-channel RGB.
func Decode(data []byte, format Format) (*diffimage.RawImage, error) {
	var img image.Image
	var err error
	switch format {
	case PNG:
		img, err = png.Decode(bytes.NewReader(data))
	case JPEG:
		img, err = jpeg.Decode(bytes.NewReader(data))
	default:
		return nil, xerrors.Errorf("unsupported format: %s", format)
	}
	if err != nil {
		return nil, xerrors.Errorf("failed to decode %s: %w", format, err)
	}

	nrgba := toNRGBA(img)
	width := nrgba.Rect.Dx()
	height := nrgba.Rect.Dy()

	if format == PNG {
		return &diffimage.RawImage{
			Width:    width,
			Height:   height,
			Channels: 4,
			Pix:      nrgba.Pix,
		}, nil
	}

	rgb := make([]byte, width*height*3)
	for i, j := 0, 0; i < len(nrgba.Pix); i, j = i+4, j+3 {
		rgb[j] = nrgba.Pix[i]
		rgb[j+1] = nrgba.Pix[i+1]
		rgb[j+2] = nrgba.Pix[i+2]
	}
	return &diffimage.RawImage{
		Width:    width,
		Height:   height,
		Channels: 3,
		Pix:      rgb,
	}, nil
}

func toNRGBA(img image.Image) *image.NRGBA {
	bounds := img.Bounds()
	if nrgba, ok := img.(*image.NRGBA); ok && bounds.Min == (image.Point{}) && nrgba.Stride == bounds.Dx()*4 {
		return nrgba
	}

	nrgba := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	xdraw.Draw(nrgba, nrgba.Bounds(), img, bounds.Min, xdraw.Src)
	return nrgba
}

func EncodePNG(img *diffimage.RawImage) ([]byte, error) {
	if img.Channels != 4 {
		return nil, xerrors.Errorf("cannot encode %d channel image as PNG", img.Channels)
	}
	if err := img.Validate(); err != nil {
		return nil, xerrors.Errorf("invalid image: %w", err)
	}

	var buffer bytes.Buffer
	if err := png.Encode(&buffer, &image.NRGBA{
		Pix:    img.Pix,
		Stride: img.Width * 4,
		Rect:   image.Rect(0, 0, img.Width, img.Height),
	}); err != nil {
		return nil, xerrors.Errorf("failed to encode diff image: %w", err)
	}

	return buffer.Bytes(), nil
}
