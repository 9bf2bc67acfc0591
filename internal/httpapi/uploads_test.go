package httpapi

import (
	"bytes"
	"strings"
	"testing"
)

func TestSaveClassifiesByExtension(t *testing.T) {
	store, err := NewUploadStore(t.TempDir(), 10)
	if err != nil {
		t.Fatalf("NewUploadStore: %v", err)
	}

	tests := []struct {
		name     string
		wantKind string
	}{
		{"cells.h5ad", "h5ad"},
		{"matrix.H5AD", "h5ad"},
		{"meta.csv", "table"},
		{"counts.tsv", "table"},
		{"bundle.zip", "archive"},
		{"notes.bin", "file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref, err := store.Save(tt.name, bytes.NewReader([]byte("content")))
			if err != nil {
				t.Fatalf("Save: %v", err)
			}
			if ref.Kind != tt.wantKind {
				t.Errorf("Kind = %q, want %q", ref.Kind, tt.wantKind)
			}
			if ref.Name != tt.name {
				t.Errorf("Name = %q, want the original filename", ref.Name)
			}
			if ref.Size != int64(len("content")) {
				t.Errorf("Size = %d", ref.Size)
			}
		})
	}
}

func TestSaveDistinctPathsForSameName(t *testing.T) {
	store, _ := NewUploadStore(t.TempDir(), 10)

	a, err := store.Save("cells.h5ad", strings.NewReader("one"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	b, err := store.Save("cells.h5ad", strings.NewReader("two"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if a.Path == b.Path {
		t.Errorf("same stored path %q for two uploads of the same name", a.Path)
	}
}

func TestSaveSanitizesTraversalNames(t *testing.T) {
	dir := t.TempDir()
	store, _ := NewUploadStore(dir, 10)

	ref, err := store.Save("../../etc/passwd", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !strings.HasPrefix(ref.Path, dir) {
		t.Errorf("stored path %q escaped the upload dir %q", ref.Path, dir)
	}
}

func TestSaveEnforcesSizeLimit(t *testing.T) {
	store, _ := NewUploadStore(t.TempDir(), 1) // 1 MB

	big := bytes.Repeat([]byte("a"), 2<<20)
	if _, err := store.Save("huge.csv", bytes.NewReader(big)); err == nil {
		t.Fatal("expected an error for an oversized upload")
	}
}
