// Package storage provides file stores for upload fields.
package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/goliatone/go-formflow/pkg/genre"
)

// Disk writes uploads below a root directory and serves them under a base URL.
// Stored names are random so client-chosen names never reach the filesystem.
type Disk struct {
	root    string
	baseURL string
	newName func() string
}

// DiskOption configures a Disk store.
type DiskOption func(*Disk)

// NewDisk builds a store rooted at dir. Files are addressed publicly as
// baseURL + "/" + name.
func NewDisk(dir, baseURL string, options ...DiskOption) *Disk {
	d := &Disk{
		root:    dir,
		baseURL: strings.TrimRight(baseURL, "/"),
		newName: func() string { return uuid.NewString() },
	}
	for _, option := range options {
		option(d)
	}
	return d
}

// Store persists the upload and returns its location.
func (d *Disk) Store(_ context.Context, upload genre.Upload) (genre.FileRef, error) {
	name := d.newName() + strings.ToLower(filepath.Ext(upload.Name))
	target := filepath.Join(d.root, name)

	if err := os.MkdirAll(d.root, 0o755); err != nil {
		return genre.FileRef{}, fmt.Errorf("storage: create root: %w", err)
	}

	out, err := os.Create(target)
	if err != nil {
		return genre.FileRef{}, fmt.Errorf("storage: create file: %w", err)
	}
	if _, err := io.Copy(out, upload.Content); err != nil {
		out.Close()
		os.Remove(target)
		return genre.FileRef{}, fmt.Errorf("storage: write file: %w", err)
	}
	if err := out.Close(); err != nil {
		return genre.FileRef{}, fmt.Errorf("storage: close file: %w", err)
	}

	return genre.FileRef{
		Directory: target,
		URL:       d.baseURL + "/" + name,
	}, nil
}

// Delete removes a previously stored file. Missing files are not an error so
// replacements stay idempotent.
func (d *Disk) Delete(_ context.Context, ref genre.FileRef) error {
	target := ref.Directory
	if target == "" && ref.URL != "" {
		// Older records may only carry the URL.
		parsed, err := url.Parse(ref.URL)
		if err != nil {
			return fmt.Errorf("storage: parse url: %w", err)
		}
		target = filepath.Join(d.root, path.Base(parsed.Path))
	}
	if target == "" {
		return nil
	}
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("storage: delete file: %w", err)
	}
	return nil
}
