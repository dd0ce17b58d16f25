// Package workspace resolves paths relative to the agent workspace root.
package workspace

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// MaxFileBytes caps how much of a file ReadFile will load.
const MaxFileBytes = 1 << 20

// FileRef points at a document, optionally at a line window.
type FileRef struct {
	Ref string
	// From is the 1-based first line; values below 1 mean the start of the file.
	From int
	// Lines is the number of lines to return; 0 means to the end of the file.
	Lines int
}

// FileContent is the outcome of ReadFile. Found is false for anything that could not be read.
type FileContent struct {
	Text  string
	Path  string
	Found bool
}

// Resolver maps relative references onto the workspace root.
type Resolver struct {
	root string
}

// NewResolver creates a resolver for the given root directory.
func NewResolver(root string) (*Resolver, error) {
	if root == "" {
		root = "."
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace root: %w", err)
	}
	return &Resolver{root: abs}, nil
}

// Root returns the absolute workspace root.
func (r *Resolver) Root() string { return r.root }

// Resolve returns p unchanged when absolute, otherwise joined to the root.
func (r *Resolver) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(r.root, p)
}

// ReadFile returns the requested line window of a file inside the workspace.
// Refs escaping the root, directories and missing files yield Found=false.
func (r *Resolver) ReadFile(ref FileRef) FileContent {
	rel, ok := r.relative(ref.Ref)
	if !ok {
		return FileContent{Path: ref.Ref}
	}

	text, err := r.read(rel, ref.From, ref.Lines)
	if err != nil {
		return FileContent{Path: filepath.ToSlash(rel)}
	}
	return FileContent{Text: text, Path: filepath.ToSlash(rel), Found: true}
}

func (r *Resolver) relative(ref string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", false
	}
	target := r.Resolve(filepath.FromSlash(ref))
	rel, err := filepath.Rel(r.root, filepath.Clean(target))
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return rel, true
}

func (r *Resolver) read(rel string, from, lines int) (string, error) {
	// os.Root refuses symlinks that leave the workspace.
	root, err := os.OpenRoot(r.root)
	if err != nil {
		return "", err
	}
	defer func() { _ = root.Close() }()

	f, err := root.Open(rel)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "", errors.New("is a directory")
	}

	data, err := io.ReadAll(io.LimitReader(f, MaxFileBytes))
	if err != nil {
		return "", err
	}
	return window(string(data), from, lines), nil
}

func window(text string, from, lines int) string {
	if from <= 1 && lines <= 0 {
		return text
	}
	if from < 1 {
		from = 1
	}

	var b strings.Builder
	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 0, 64*1024), MaxFileBytes)
	n, taken := 0, 0
	for sc.Scan() {
		n++
		if n < from {
			continue
		}
		if lines > 0 && taken == lines {
			break
		}
		if taken > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(sc.Text())
		taken++
	}
	return b.String()
}
