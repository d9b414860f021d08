// Package sandbox confines all generated-file I/O for a run to one root directory.
//
// Every operation resolves its path against the root and re-validates containment on
// each call; nothing is cached because the root may be created or replaced between
// calls. Paths that lexically escape the root (".." segments, absolute paths elsewhere)
// are rejected with ErrOutsideRoot. Symlinks inside the root are resolved with
// securejoin so that following them can never leave the root.
package sandbox

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	securejoin "github.com/cyphar/filepath-securejoin"
)

// BinarySentinel is returned by Read when a file exists but is not valid UTF-8 text.
const BinarySentinel = "[[binary file]]"

const (
	dirPerm  = 0o755
	filePerm = 0o644
)

var (
	// ErrOutsideRoot indicates a path that resolves outside the sandbox root.
	ErrOutsideRoot = errors.New("path must be inside project root")

	// ErrNotAFile indicates a path that names the root itself or a directory.
	ErrNotAFile = errors.New("path must name a file")
)

// Store is the sandboxed file store for one run. It is not safe for concurrent use.
type Store struct {
	root string
}

// New creates a store rooted at root. Relative roots are made absolute against the
// current working directory. The directory is not created until first use.
func New(root string) (*Store, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("sandbox root cannot be empty")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve sandbox root %q: %w", root, err)
	}
	return &Store{root: filepath.Clean(abs)}, nil
}

// EnsureRoot creates the root and any missing parents. Repeated calls are no-ops.
func (s *Store) EnsureRoot() error {
	if err := os.MkdirAll(s.root, dirPerm); err != nil {
		return fmt.Errorf("failed to create sandbox root %s: %w", s.root, err)
	}
	return nil
}

// Root returns the absolute sandbox root after ensuring it exists.
func (s *Store) Root() (string, error) {
	if err := s.EnsureRoot(); err != nil {
		return "", err
	}
	return s.root, nil
}

// Resolve maps a user-supplied path to an absolute path inside the root.
func (s *Store) Resolve(path string) (string, error) {
	if err := s.EnsureRoot(); err != nil {
		return "", err
	}

	var joined string
	if filepath.IsAbs(path) {
		joined = filepath.Clean(path)
	} else {
		joined = filepath.Join(s.root, path)
	}

	rel, err := filepath.Rel(s.root, joined)
	if err != nil || escapes(rel) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, path)
	}

	resolved, err := securejoin.SecureJoin(s.root, rel)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	return resolved, nil
}

func escapes(rel string) bool {
	return rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Write writes content to path, creating parent directories and overwriting any
// existing file. It returns the resolved absolute path.
func (s *Store) Write(path, content string) (string, error) {
	p, err := s.Resolve(path)
	if err != nil {
		return "", err
	}
	if p == s.root {
		return "", fmt.Errorf("%w: %s", ErrNotAFile, path)
	}

	if err := os.MkdirAll(filepath.Dir(p), dirPerm); err != nil {
		return "", fmt.Errorf("failed to create parent directories for %s: %w", path, err)
	}
	if err := os.WriteFile(p, []byte(content), filePerm); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return p, nil
}

// Read returns the text content of path. A missing file yields "" and no error;
// a file that is not valid UTF-8 yields BinarySentinel.
func (s *Store) Read(path string) (string, error) {
	p, err := s.Resolve(path)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(p)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrNotAFile, path)
	}

	data, err := os.ReadFile(p)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	if !utf8.Valid(data) {
		return BinarySentinel, nil
	}
	return string(data), nil
}

// List returns every regular file under the root as a slash-separated path relative
// to the root, sorted lexicographically. Symlinks are not followed.
func (s *Store) List() ([]string, error) {
	if err := s.EnsureRoot(); err != nil {
		return nil, err
	}

	files := []string{}
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", s.root, err)
	}

	sort.Strings(files)
	return files, nil
}

// ListString returns List newline-joined, or "" when the root holds no files.
func (s *Store) ListString() (string, error) {
	files, err := s.List()
	if err != nil {
		return "", err
	}
	return strings.Join(files, "\n"), nil
}
