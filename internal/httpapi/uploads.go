package httpapi

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	. "github.com/seqchat/seqchat/internal/logging"
	"github.com/seqchat/seqchat/internal/types"
)

// unsafeNameChars matches everything stripped from client-supplied filenames.
var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// UploadStore saves uploaded data files under a single base directory with
// collision-free names. Files persist for the life of the process; the
// analysis service reads them by absolute path.
type UploadStore struct {
	dir      string
	maxBytes int64
}

// NewUploadStore creates the base directory if needed.
func NewUploadStore(dir string, maxSizeMB int64) (*UploadStore, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve upload dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o700); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	if maxSizeMB <= 0 {
		maxSizeMB = 100
	}

	L_debug("uploads: store ready", "dir", abs, "maxSizeMB", maxSizeMB)
	return &UploadStore{dir: abs, maxBytes: maxSizeMB << 20}, nil
}

// Save stores one uploaded file and returns its reference. Files exceeding
// the size limit are rejected and the partial write is removed.
func (s *UploadStore) Save(name string, r io.Reader) (types.FileRef, error) {
	clean := unsafeNameChars.ReplaceAllString(filepath.Base(name), "_")
	if clean == "" || clean == "." {
		clean = "upload"
	}
	stored := uuid.NewString()[:8] + "_" + clean
	path := filepath.Join(s.dir, stored)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return types.FileRef{}, fmt.Errorf("create upload file: %w", err)
	}

	written, err := io.Copy(f, io.LimitReader(r, s.maxBytes+1))
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && written > s.maxBytes {
		err = fmt.Errorf("file %q exceeds the %d MB upload limit", name, s.maxBytes>>20)
	}
	if err != nil {
		os.Remove(path)
		return types.FileRef{}, err
	}

	ref := types.FileRef{
		Name: name,
		Size: written,
		Path: path,
		Kind: classifyFile(path, name),
	}
	L_info("uploads: file saved", "name", name, "kind", ref.Kind, "bytes", written)
	return ref, nil
}

// classifyFile derives the short kind hint used for icon display and for
// the workflow file preference (h5ad before tabular formats).
func classifyFile(path, name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".h5ad", ".h5":
		return "h5ad"
	case ".csv", ".tsv", ".txt":
		return "table"
	case ".zip", ".gz", ".tar":
		return "archive"
	}

	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return "file"
	}
	switch {
	case mt.Is("text/csv") || mt.Is("text/tab-separated-values"):
		return "table"
	case mt.Is("application/zip") || mt.Is("application/gzip"):
		return "archive"
	}
	return "file"
}
