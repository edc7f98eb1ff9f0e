package listing

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	gitignore "github.com/monochromegane/go-gitignore"
	"golang.org/x/xerrors"
)

// IgnoreFileName is the gitignore-style file read from the root of each scanned tree.
const IgnoreFileName = ".diffignore"

// ErrInvalidRoot is matched by errors returned when a root is missing, not a directory or unreadable.
var ErrInvalidRoot = errors.New("invalid root")

var ErrInvalidPattern = errors.New("invalid pattern")

type RootError struct {
	Root string
	Err  error
}

func (e *RootError) Error() string {
	return fmt.Sprintf("%s: %s", e.Root, e.Err)
}

func (e *RootError) Unwrap() []error {
	return []error{ErrInvalidRoot, e.Err}
}

type options struct {
	pattern    string
	ignoreFile string
}

type Option func(*options)

// WithPattern restricts listing to paths matching a doublestar pattern such as "pages/**".
func WithPattern(pattern string) Option {
	return func(o *options) {
		o.pattern = pattern
	}
}

// WithIgnoreFile overrides the ignore file name. An empty name disables ignore rules.
func WithIgnoreFile(name string) Option {
	return func(o *options) {
		o.ignoreFile = name
	}
}

func IsImage(p string) bool {
	switch strings.ToLower(path.Ext(p)) {
	case ".png", ".jpg", ".jpeg":
		return true
	default:
		return false
	}
}

// ListImages returns the sorted, slash-separated paths of png/jpg/jpeg files under root.
func ListImages(root string, opts ...Option) ([]string, error) {
	o := &options{
		pattern:    "**",
		ignoreFile: IgnoreFileName,
	}
	for _, opt := range opts {
		opt(o)
	}

	if !doublestar.ValidatePattern(o.pattern) {
		return nil, xerrors.Errorf("%w: %s", ErrInvalidPattern, o.pattern)
	}

	root, err := filepath.Abs(root)
	if err != nil {
		return nil, &RootError{Root: root, Err: err}
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, &RootError{Root: root, Err: xerrors.Errorf("failed to stat: %w", err)}
	}
	if !info.IsDir() {
		return nil, &RootError{Root: root, Err: xerrors.New("not a directory")}
	}

	var ignore gitignore.IgnoreMatcher
	if o.ignoreFile != "" {
		data, err := os.ReadFile(filepath.Join(root, o.ignoreFile))
		switch {
		case err == nil:
			ignore = gitignore.NewGitIgnoreFromReader(root, bytes.NewReader(data))
		case !errors.Is(err, fs.ErrNotExist):
			return nil, &RootError{Root: root, Err: xerrors.Errorf("failed to read %s: %w", o.ignoreFile, err)}
		}
	}

	// ignored also checks every parent directory, since patterns such as "**/*.png" never hand
	// directories to the walk callback.
	ignored := func(p string, isDir bool) bool {
		if ignore == nil {
			return false
		}
		if ignore.Match(filepath.Join(root, filepath.FromSlash(p)), isDir) {
			return true
		}
		for dir := path.Dir(p); dir != "."; dir = path.Dir(dir) {
			if ignore.Match(filepath.Join(root, filepath.FromSlash(dir)), true) {
				return true
			}
		}
		return false
	}

	paths := []string{}
	if err := doublestar.GlobWalk(os.DirFS(root), o.pattern, func(p string, d fs.DirEntry) error {
		if d.IsDir() {
			if p != "." && ignored(p, true) {
				return doublestar.SkipDir
			}
			return nil
		}
		if !IsImage(p) || ignored(p, false) {
			return nil
		}
		paths = append(paths, p)
		return nil
	}); err != nil {
		return nil, &RootError{Root: root, Err: xerrors.Errorf("failed to walk: %w", err)}
	}

	sort.Strings(paths)
	return paths, nil
}
