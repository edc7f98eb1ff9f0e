package listing_test

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"snapshot-diff/internal/listing"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, root string, names ...string) {
	t.Helper()
	for _, name := range names {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte("x"), 0644))
	}
}

func TestListImages(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFiles(t, root,
		"b.png",
		"a.JPG",
		"nested/deep/c.jpeg",
		"nested/d.Png",
		"notes.txt",
		"nested/e.gif",
	)

	got, err := listing.ListImages(root)
	require.NoError(t, err)

	want := []string{"a.JPG", "b.png", "nested/d.Png", "nested/deep/c.jpeg"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestListImagesEmptyRoot(t *testing.T) {
	t.Parallel()

	got, err := listing.ListImages(t.TempDir())
	require.NoError(t, err)

	if diff := cmp.Diff([]string{}, got); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestListImagesMissingRoot(t *testing.T) {
	t.Parallel()

	_, err := listing.ListImages(filepath.Join(t.TempDir(), "missing"))
	require.ErrorIs(t, err, listing.ErrInvalidRoot)

	root := t.TempDir()
	writeFiles(t, root, "file.png")
	_, err = listing.ListImages(filepath.Join(root, "file.png"))
	require.ErrorIs(t, err, listing.ErrInvalidRoot)
}

func TestListImagesPattern(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFiles(t, root, "pages/home.png", "pages/about/team.png", "components/button.png")

	got, err := listing.ListImages(root, listing.WithPattern("pages/**"))
	require.NoError(t, err)

	want := []string{"pages/about/team.png", "pages/home.png"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}

	_, err = listing.ListImages(root, listing.WithPattern("pages/[a"))
	require.Error(t, err)
}

func TestListImagesIgnoreFile(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFiles(t, root, "keep.png", "flaky.png", "sub/flaky.png")
	require.NoError(t, os.WriteFile(filepath.Join(root, listing.IgnoreFileName), []byte("flaky.png\n"), 0644))

	got, err := listing.ListImages(root)
	require.NoError(t, err)

	if diff := cmp.Diff([]string{"keep.png"}, got); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}

	got, err = listing.ListImages(root, listing.WithIgnoreFile(""))
	require.NoError(t, err)

	if diff := cmp.Diff([]string{"flaky.png", "keep.png", "sub/flaky.png"}, got); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestListImagesIgnoreFolder(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFiles(t, root, "ignored/a.png", "ignored/deep/e.png", "keep/b.png", "keep/ignored.png", "c.PNG", "d.jpeg")
	require.NoError(t, os.WriteFile(filepath.Join(root, listing.IgnoreFileName), []byte("ignored/\n*.jpeg\n"), 0644))

	type testCase struct {
		name string
		opts []listing.Option
		want []string
	}
	tests := []testCase{
		func() testCase {
			_, _, line, _ := runtime.Caller(0)
			return testCase{
				name: fmt.Sprint(line),
				want: []string{"c.PNG", "keep/b.png", "keep/ignored.png"},
			}
		}(),
		func() testCase {
			_, _, line, _ := runtime.Caller(0)
			return testCase{
				name: fmt.Sprint(line),
				opts: []listing.Option{listing.WithPattern("**/*.png")},
				want: []string{"keep/b.png", "keep/ignored.png"},
			}
		}(),
		func() testCase {
			_, _, line, _ := runtime.Caller(0)
			return testCase{
				name: fmt.Sprint(line),
				opts: []listing.Option{listing.WithPattern("ignored/**")},
				want: []string{},
			}
		}(),
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := listing.ListImages(root, tt.opts...)
			require.NoError(t, err)

			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("(-want +got):\n%s", diff)
			}
		})
	}
}

func TestListImagesUnreadableIgnoreFile(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFiles(t, root, "a.png")
	require.NoError(t, os.Mkdir(filepath.Join(root, listing.IgnoreFileName), 0755))

	_, err := listing.ListImages(root)
	require.ErrorIs(t, err, listing.ErrInvalidRoot)
}
