package image_test

import (
	"fmt"
	"runtime"
	diffimage "snapshot-diff/internal/diff/image"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestToRGBA(t *testing.T) {
	type in struct {
		first *diffimage.RawImage
	}

	type want struct {
		first *diffimage.RawImage
	}

	tests := []struct {
		name           string
		in             in
		want           want
		wantErrorExist bool
	}{
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			in{
				&diffimage.RawImage{Width: 2, Height: 1, Channels: 3, Pix: []byte{1, 2, 3, 4, 5, 6}},
			},
			want{
				&diffimage.RawImage{Width: 2, Height: 1, Channels: 4, Pix: []byte{1, 2, 3, 255, 4, 5, 6, 255}},
			},
			false,
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			in{
				&diffimage.RawImage{Width: 1, Height: 1, Channels: 4, Pix: []byte{1, 2, 3, 4}},
			},
			want{
				&diffimage.RawImage{Width: 1, Height: 1, Channels: 4, Pix: []byte{1, 2, 3, 4}},
			},
			false,
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			in{
				&diffimage.RawImage{Width: 1, Height: 1, Channels: 2, Pix: []byte{1, 2}},
			},
			want{
				nil,
			},
			true,
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			in{
				&diffimage.RawImage{Width: 2, Height: 2, Channels: 3, Pix: []byte{1, 2, 3}},
			},
			want{
				nil,
			},
			true,
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			in{
				&diffimage.RawImage{Width: 2, Height: 2, Channels: 4, Pix: []byte{1, 2, 3, 4}},
			},
			want{
				nil,
			},
			true,
		},
	}
	for _, tt := range tests {
		name := tt.name
		in := tt.in
		want := tt.want
		wantErrorExist := tt.wantErrorExist
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, err := diffimage.ToRGBA(in.first)
			if diff := cmp.Diff(want.first, got); diff != "" {
				t.Errorf("(-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(wantErrorExist, err != nil); diff != "" {
				t.Errorf("(-want +got):\n%s", diff)
			}
		})
	}
}

func TestPad(t *testing.T) {
	type in struct {
		first  *diffimage.RawImage
		second *diffimage.RawImage
	}

	type want struct {
		first  *diffimage.RawImage
		second *diffimage.RawImage
	}

	tests := []struct {
		name string
		in   in
		want want
	}{
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			in{
				&diffimage.RawImage{Width: 1, Height: 1, Channels: 4, Pix: []byte{1, 2, 3, 4}},
				&diffimage.RawImage{Width: 2, Height: 2, Channels: 4, Pix: []byte{
					5, 5, 5, 5, 6, 6, 6, 6,
					7, 7, 7, 7, 8, 8, 8, 8,
				}},
			},
			want{
				&diffimage.RawImage{Width: 2, Height: 2, Channels: 4, Pix: []byte{
					1, 2, 3, 4, 0, 0, 0, 0,
					0, 0, 0, 0, 0, 0, 0, 0,
				}},
				&diffimage.RawImage{Width: 2, Height: 2, Channels: 4, Pix: []byte{
					5, 5, 5, 5, 6, 6, 6, 6,
					7, 7, 7, 7, 8, 8, 8, 8,
				}},
			},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			in{
				&diffimage.RawImage{Width: 2, Height: 1, Channels: 4, Pix: []byte{1, 1, 1, 1, 2, 2, 2, 2}},
				&diffimage.RawImage{Width: 1, Height: 2, Channels: 4, Pix: []byte{3, 3, 3, 3, 4, 4, 4, 4}},
			},
			want{
				&diffimage.RawImage{Width: 2, Height: 2, Channels: 4, Pix: []byte{
					1, 1, 1, 1, 2, 2, 2, 2,
					0, 0, 0, 0, 0, 0, 0, 0,
				}},
				&diffimage.RawImage{Width: 2, Height: 2, Channels: 4, Pix: []byte{
					3, 3, 3, 3, 0, 0, 0, 0,
					4, 4, 4, 4, 0, 0, 0, 0,
				}},
			},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			in{
				&diffimage.RawImage{Width: 0, Height: 0, Channels: 4, Pix: []byte{}},
				&diffimage.RawImage{Width: 1, Height: 1, Channels: 4, Pix: []byte{9, 9, 9, 9}},
			},
			want{
				&diffimage.RawImage{Width: 1, Height: 1, Channels: 4, Pix: []byte{0, 0, 0, 0}},
				&diffimage.RawImage{Width: 1, Height: 1, Channels: 4, Pix: []byte{9, 9, 9, 9}},
			},
		},
	}
	for _, tt := range tests {
		name := tt.name
		in := tt.in
		want := tt.want
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			gotFirst, gotSecond := diffimage.Pad(in.first, in.second)
			if diff := cmp.Diff(want.first, gotFirst); diff != "" {
				t.Errorf("(-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(want.second, gotSecond); diff != "" {
				t.Errorf("(-want +got):\n%s", diff)
			}
		})
	}
}

func TestPadNeverShrinksAndKeepsSource(t *testing.T) {
	t.Parallel()

	sizes := [][2]int{{10, 10}, {10, 12}, {3, 7}, {7, 3}, {1, 1}}
	for _, a := range sizes {
		for _, b := range sizes {
			first := diffimage.NewRGBA(a[0], a[1])
			for i := range first.Pix {
				first.Pix[i] = byte(i%251 + 1)
			}
			second := diffimage.NewRGBA(b[0], b[1])

			gotFirst, gotSecond := diffimage.Pad(first, second)

			wantWidth, wantHeight := max(a[0], b[0]), max(a[1], b[1])
			for _, got := range []*diffimage.RawImage{gotFirst, gotSecond} {
				if got.Width != wantWidth || got.Height != wantHeight {
					t.Fatalf("Pad(%v, %v) = %dx%d, want %dx%d", a, b, got.Width, got.Height, wantWidth, wantHeight)
				}
				if err := got.Validate(); err != nil {
					t.Fatalf("Pad(%v, %v) produced an invalid image: %v", a, b, err)
				}
			}

			for y := 0; y < wantHeight; y++ {
				for x := 0; x < wantWidth; x++ {
					for c := 0; c < 4; c++ {
						got := gotFirst.Pix[(y*wantWidth+x)*4+c]
						want := byte(0)
						if x < a[0] && y < a[1] {
							want = first.Pix[(y*a[0]+x)*4+c]
						}
						if got != want {
							t.Fatalf("Pad(%v, %v) pixel (%d,%d,%d) = %d, want %d", a, b, x, y, c, got, want)
						}
					}
				}
			}
		}
	}
}

func TestPadDoesNotAlias(t *testing.T) {
	t.Parallel()

	first := &diffimage.RawImage{Width: 1, Height: 1, Channels: 4, Pix: []byte{1, 2, 3, 4}}
	second := &diffimage.RawImage{Width: 1, Height: 1, Channels: 4, Pix: []byte{5, 6, 7, 8}}

	gotFirst, gotSecond := diffimage.Pad(first, second)
	for i := range gotFirst.Pix {
		gotFirst.Pix[i] = 0
		gotSecond.Pix[i] = 0
	}

	if diff := cmp.Diff([]byte{1, 2, 3, 4}, first.Pix); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]byte{5, 6, 7, 8}, second.Pix); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}
