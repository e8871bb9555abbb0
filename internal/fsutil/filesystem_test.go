package fsutil

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestOSFileSystem_Exists(t *testing.T) {
	fs := OSFileSystem{}

	if !fs.Exists("filesystem.go") {
		t.Error("expected filesystem.go to exist")
	}

	if fs.Exists("nonexistent_file_xyz.go") {
		t.Error("expected nonexistent file to not exist")
	}
}

func TestOSFileSystem_ReadFile(t *testing.T) {
	fs := OSFileSystem{}

	data, err := fs.ReadFile("filesystem.go")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}

	if len(data) == 0 {
		t.Error("expected non-empty file content")
	}
}

func TestOSFileSystem_CreateOpenReadDir(t *testing.T) {
	osfs := OSFileSystem{}
	dir := t.TempDir()

	sub := filepath.Join(dir, "nested", "deeper")
	if err := osfs.MkdirAll(sub, 0755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}

	path := filepath.Join(dir, "run.proto")
	w, err := osfs.Create(path)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := w.Write([]byte("abc")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	f, err := osfs.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if string(data) != "abc" {
		t.Errorf("expected abc, got %q", data)
	}

	entries, err := osfs.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("expected 2 entries, got %d", len(entries))
	}

	if err := osfs.WriteFile(filepath.Join(dir, "x.txt"), []byte("1"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	info, err := osfs.Stat(filepath.Join(dir, "x.txt"))
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Size() != 1 {
		t.Errorf("expected size 1, got %d", info.Size())
	}
}

func TestMemoryFileSystem_WriteAndRead(t *testing.T) {
	mfs := NewMemoryFileSystem()

	testData := []byte("hello, world")
	err := mfs.WriteFile("/test.txt", testData, 0644)
	if err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	data, err := mfs.ReadFile("/test.txt")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}

	if string(data) != string(testData) {
		t.Errorf("expected %q, got %q", testData, data)
	}

	// Mutating the returned slice must not alter the stored file.
	data[0] = 'X'
	again, _ := mfs.ReadFile("/test.txt")
	if again[0] != 'h' {
		t.Error("stored data was mutated through returned slice")
	}
}

func TestMemoryFileSystem_CreateAndOpen(t *testing.T) {
	mfs := NewMemoryFileSystem()

	w, err := mfs.Create("/out/records.tfrecord")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	w.Write([]byte("part1 "))
	w.Write([]byte("part2"))
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	f, err := mfs.Open("/out/records.tfrecord")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	data, _ := io.ReadAll(f)
	if string(data) != "part1 part2" {
		t.Errorf("unexpected content %q", data)
	}
	info, err := f.Stat()
	if err != nil || info.Size() != int64(len("part1 part2")) {
		t.Errorf("unexpected stat %v %v", info, err)
	}

	if !mfs.Exists("/out") {
		t.Error("expected parent directory to exist after Create")
	}
}

func TestMemoryFileSystem_NotExist(t *testing.T) {
	mfs := NewMemoryFileSystem()

	if _, err := mfs.Open("/missing"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Open: expected ErrNotExist, got %v", err)
	}
	if _, err := mfs.ReadFile("/missing"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("ReadFile: expected ErrNotExist, got %v", err)
	}
	if _, err := mfs.Stat("/missing"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Stat: expected ErrNotExist, got %v", err)
	}
	if _, err := mfs.ReadDir("/missing"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("ReadDir: expected ErrNotExist, got %v", err)
	}
}

func TestMemoryFileSystem_StatDir(t *testing.T) {
	mfs := NewMemoryFileSystem()
	if err := mfs.MkdirAll("/a/b/c", 0755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}

	for _, dir := range []string{"/a", "/a/b", "/a/b/c"} {
		info, err := mfs.Stat(dir)
		if err != nil {
			t.Fatalf("Stat(%s) failed: %v", dir, err)
		}
		if !info.IsDir() {
			t.Errorf("expected %s to be a directory", dir)
		}
	}
}

func TestMemoryFileSystem_ReadDir(t *testing.T) {
	mfs := NewMemoryFileSystem()
	mfs.WriteFile("/data/b.proto", []byte("b"), 0644)
	mfs.WriteFile("/data/a.proto", []byte("a"), 0644)
	mfs.WriteFile("/data/sub/c.proto", []byte("c"), 0644)

	entries, err := mfs.ReadDir("/data")
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}

	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	want := []string{"a.proto", "b.proto", "sub"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("expected %v, got %v", want, names)
	}
	if !entries[2].IsDir() {
		t.Error("expected sub to be a directory")
	}
}

func TestListFiles(t *testing.T) {
	mfs := NewMemoryFileSystem()
	mfs.WriteFile("/logs/run2.proto", nil, 0644)
	mfs.WriteFile("/logs/run1.PROTO", nil, 0644)
	mfs.WriteFile("/logs/notes.txt", nil, 0644)
	mfs.WriteFile("/logs/nested/run3.proto", nil, 0644)

	tests := []struct {
		name string
		exts []string
		want []string
	}{
		{"dotted extension", []string{".proto"}, []string{"/logs/run1.PROTO", "/logs/run2.proto"}},
		{"bare extension", []string{"proto"}, []string{"/logs/run1.PROTO", "/logs/run2.proto"}},
		{"multiple extensions", []string{"txt", ".proto"}, []string{"/logs/notes.txt", "/logs/run1.PROTO", "/logs/run2.proto"}},
		{"no filter", nil, []string{"/logs/notes.txt", "/logs/run1.PROTO", "/logs/run2.proto"}},
		{"no match", []string{".tfrecord"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ListFiles(mfs, "/logs", tt.exts)
			if err != nil {
				t.Fatalf("ListFiles failed: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}

	if _, err := ListFiles(mfs, "/nowhere", nil); err == nil {
		t.Error("expected error for missing directory")
	}
}

func TestMemFileInfo(t *testing.T) {
	info := &memFileInfo{name: "x", size: 3, mode: 0600}
	if info.Name() != "x" || info.Size() != 3 || info.Mode() != os.FileMode(0600) {
		t.Errorf("unexpected info %+v", info)
	}
	if info.IsDir() || info.Sys() != nil || !info.ModTime().IsZero() {
		t.Errorf("unexpected info %+v", info)
	}
}
