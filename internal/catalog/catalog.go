package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/afero"
)

const documentExt = ".json"

var (
	ErrNotFound    = errors.New("document not found")
	ErrInvalidName = errors.New("invalid document name")
)

// Catalog resolves sample names and stores uploads on a filesystem.
type Catalog struct {
	fs         afero.Fs
	samplesDir string
	uploadDir  string
}

func New(fsys afero.Fs, samplesDir string, uploadDir string) *Catalog {
	return &Catalog{
		fs:         fsys,
		samplesDir: filepath.Clean(samplesDir),
		uploadDir:  filepath.Clean(uploadDir),
	}
}

// List returns the sample names without their extension, sorted.
func (c *Catalog) List() ([]string, error) {
	infos, err := afero.ReadDir(c.fs, c.samplesDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}

		return nil, fmt.Errorf("read samples dir: %w", err)
	}

	names := make([]string, 0, len(infos))
	for _, info := range infos {
		if info.IsDir() || !strings.HasSuffix(info.Name(), documentExt) {
			continue
		}

		names = append(names, strings.TrimSuffix(info.Name(), documentExt))
	}

	slices.Sort(names)

	return names, nil
}

// Open reads the sample document with the given name.
func (c *Catalog) Open(name string) ([]byte, error) {
	if !validName(name) {
		return nil, fmt.Errorf("%w (name = %q)", ErrNotFound, name)
	}

	data, err := afero.ReadFile(c.fs, filepath.Join(c.samplesDir, name+documentExt))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w (name = %q)", ErrNotFound, name)
		}

		return nil, fmt.Errorf("read sample: %w", err)
	}

	return data, nil
}

// SaveUpload stores an uploaded document under its base name and returns the
// stored path together with the document bytes.
func (c *Catalog) SaveUpload(name string, r io.Reader) (string, []byte, error) {
	base := path.Base(filepath.ToSlash(strings.TrimSpace(name)))
	if !validName(base) {
		return "", nil, fmt.Errorf("%w (name = %q)", ErrInvalidName, name)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return "", nil, fmt.Errorf("read upload: %w", err)
	}

	if err = c.fs.MkdirAll(c.uploadDir, 0o750); err != nil {
		return "", nil, fmt.Errorf("create upload dir: %w", err)
	}

	stored := filepath.Join(c.uploadDir, base)
	if err = afero.WriteReader(c.fs, stored, bytes.NewReader(data)); err != nil {
		return "", nil, fmt.Errorf("write upload: %w", err)
	}

	return stored, data, nil
}

// PruneUploads removes uploaded files last modified before cutoff.
func (c *Catalog) PruneUploads(cutoff time.Time) (int, error) {
	infos, err := afero.ReadDir(c.fs, c.uploadDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}

		return 0, fmt.Errorf("read upload dir: %w", err)
	}

	removed := 0
	var errs []error

	for _, info := range infos {
		if info.IsDir() || !info.ModTime().Before(cutoff) {
			continue
		}

		if err = c.fs.Remove(filepath.Join(c.uploadDir, info.Name())); err != nil {
			errs = append(errs, fmt.Errorf("remove upload: %w", err))
			continue
		}
		removed++
	}

	return removed, errors.Join(errs...)
}

func validName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}

	return !strings.ContainsAny(name, `/\`) && !strings.Contains(name, "..")
}
