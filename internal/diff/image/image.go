package image

import (
	"golang.org/x/xerrors"
)

// RawImage is a decoded raster with interleaved 8-bit channels.
type RawImage struct {
	Width    int
	Height   int
	Channels int
	Pix      []byte
}

func NewRGBA(width int, height int) *RawImage {
	return &RawImage{
		Width:    width,
		Height:   height,
		Channels: 4,
		Pix:      make([]byte, width*height*4),
	}
}

func (r *RawImage) Validate() error {
	if r.Width < 0 || r.Height < 0 {
		return xerrors.Errorf("negative dimensions %dx%d", r.Width, r.Height)
	}
	if want := r.Width * r.Height * r.Channels; len(r.Pix) != want {
		return xerrors.Errorf("buffer length %d does not match %dx%dx%d", len(r.Pix), r.Width, r.Height, r.Channels)
	}
	return nil
}

// Options is forwarded untouched from the caller to the Differ.
type Options struct {
	// Threshold is the per-channel tolerance as a fraction of 255.
	Threshold float64 `json:"threshold"`
}

type Differ interface {
	// Calculate compares two RGBA buffers of width*height pixels, renders into canvas and returns
	// the number of changed pixels. canvas is either width or 3*width pixels wide.
	Calculate(baseline []byte, candidate []byte, canvas []byte, width int, height int, options Options) (int, error)
}
