// Package storage keeps message attachments on the local disk.
package storage

import (
	"direct-chat/contract"
	"direct-chat/errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

var _ contract.AttachmentStore = (*DiskStore)(nil)

// DiskStore is a content store keyed by generated filename.
type DiskStore struct {
	dir       string
	urlPrefix string
	log       *slog.Logger
}

func NewDiskStore(dir, urlPrefix string, log *slog.Logger) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create uploads dir: %w", err)
	}
	return &DiskStore{dir: dir, urlPrefix: strings.TrimSuffix(urlPrefix, "/"), log: log}, nil
}

// Write stores data under filename. The name must be a bare file name.
func (d *DiskStore) Write(filename string, data []byte) error {
	if err := validName(filename); err != nil {
		return err
	}
	path := filepath.Join(d.dir, filename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write attachment %s: %w", filename, err)
	}
	d.log.Debug("Attachment stored",
		"filename", filename,
		"size", len(data),
		"mime", mimetype.Detect(data).String())
	return nil
}

// Remove deletes an attachment. Removing a missing file succeeds.
func (d *DiskStore) Remove(filename string) error {
	if err := validName(filename); err != nil {
		return err
	}
	err := os.Remove(filepath.Join(d.dir, filename))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove attachment %s: %w", filename, err)
	}
	d.log.Debug("Attachment removed", "filename", filename)
	return nil
}

// URLFor returns the path under which the attachment is served.
func (d *DiskStore) URLFor(filename string) string {
	return d.urlPrefix + "/" + url.PathEscape(filename)
}

// Open returns the attachment and its detected MIME type.
func (d *DiskStore) Open(filename string) (*os.File, string, error) {
	if err := validName(filename); err != nil {
		return nil, "", err
	}
	path := filepath.Join(d.dir, filename)
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return nil, "", err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, "", err
	}
	return f, mt.String(), nil
}

func validName(filename string) error {
	if filename == "" || filename != filepath.Base(filename) || strings.HasPrefix(filename, ".") {
		return fmt.Errorf("invalid attachment name %q", filename)
	}
	return nil
}
