package image

import (
	"golang.org/x/xerrors"
)

// ToRGBA returns img with four channels. Three-channel input gets an opaque alpha channel.
func ToRGBA(img *RawImage) (*RawImage, error) {
	switch img.Channels {
	case 4:
		if err := img.Validate(); err != nil {
			return nil, xerrors.Errorf("invalid RGBA image: %w", err)
		}
		return img, nil
	case 3:
		area := img.Width * img.Height
		if len(img.Pix) != area*3 {
			return nil, xerrors.Errorf("buffer length %d does not match %dx%d RGB", len(img.Pix), img.Width, img.Height)
		}
		rgba := NewRGBA(img.Width, img.Height)
		for i, j := 0, 0; i < len(img.Pix); i, j = i+3, j+4 {
			rgba.Pix[j] = img.Pix[i]
			rgba.Pix[j+1] = img.Pix[i+1]
			rgba.Pix[j+2] = img.Pix[i+2]
			rgba.Pix[j+3] = 255
		}
		return rgba, nil
	default:
		return nil, xerrors.Errorf("unsupported channel count %d", img.Channels)
	}
}

// Pad grows both images to the union of their dimensions. Pixels outside a source are left
// transparent black. Both results are fresh buffers, so writing to them never touches a or b.
func Pad(a *RawImage, b *RawImage) (*RawImage, *RawImage) {
	width := max(a.Width, b.Width)
	height := max(a.Height, b.Height)

	return padTo(a, width, height), padTo(b, width, height)
}

func padTo(src *RawImage, width int, height int) *RawImage {
	dst := NewRGBA(width, height)
	srcStride := src.Width * 4
	dstStride := width * 4
	for y := 0; y < src.Height; y++ {
		copy(dst.Pix[y*dstStride:y*dstStride+srcStride], src.Pix[y*srcStride:(y+1)*srcStride])
	}
	return dst
}
