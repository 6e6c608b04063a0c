package fsutil

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestOSFileSystem_WriteAtomicAndRead(t *testing.T) {
	dir := t.TempDir()
	osfs := OSFileSystem{}
	name := filepath.Join(dir, "latest.png")

	if err := osfs.WriteFileAtomic(name, []byte("first"), 0o644); err != nil {
		t.Fatalf("WriteFileAtomic failed: %v", err)
	}
	if err := osfs.WriteFileAtomic(name, []byte("second"), 0o644); err != nil {
		t.Fatalf("WriteFileAtomic overwrite failed: %v", err)
	}

	data, err := osfs.ReadFile(name)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "second" {
		t.Errorf("expected %q, got %q", "second", data)
	}

	names, err := osfs.List(dir)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if !reflect.DeepEqual(names, []string{"latest.png"}) {
		t.Errorf("temp files left behind: %v", names)
	}
}

func TestOSFileSystem_WriteAtomicMissingDir(t *testing.T) {
	osfs := OSFileSystem{}
	err := osfs.WriteFileAtomic(filepath.Join(t.TempDir(), "nope", "x"), []byte("x"), 0o644)
	if err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestOSFileSystem_ListSkipsDirs(t *testing.T) {
	dir := t.TempDir()
	osfs := OSFileSystem{}
	if err := osfs.MkdirAll(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "b"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "a"), nil, 0o644); err != nil {
		t.Fatal(err)
	}

	names, err := osfs.List(dir)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if !reflect.DeepEqual(names, []string{"a", "b"}) {
		t.Errorf("expected [a b], got %v", names)
	}
	if err := osfs.Remove(filepath.Join(dir, "a")); err != nil {
		t.Errorf("Remove failed: %v", err)
	}
}

func TestMemoryFileSystem_WriteAndRead(t *testing.T) {
	mfs := NewMemoryFileSystem()
	if err := mfs.MkdirAll("/out", 0o755); err != nil {
		t.Fatal(err)
	}

	data := []byte("hello")
	if err := mfs.WriteFileAtomic("/out/a.txt", data, 0o600); err != nil {
		t.Fatalf("WriteFileAtomic failed: %v", err)
	}
	data[0] = 'j'

	got, err := mfs.ReadFile("/out/a.txt")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(got) != "hello" {
		t.Errorf("expected stored copy %q, got %q", "hello", got)
	}

	info, err := mfs.Stat("/out/a.txt")
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Size() != 5 || info.Mode() != 0o600 || info.IsDir() {
		t.Errorf("unexpected file info: size=%d mode=%v dir=%v", info.Size(), info.Mode(), info.IsDir())
	}
}

func TestMemoryFileSystem_WriteNeedsParent(t *testing.T) {
	mfs := NewMemoryFileSystem()
	err := mfs.WriteFileAtomic("/missing/a.txt", nil, 0o644)
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected ErrNotExist, got %v", err)
	}
}

func TestMemoryFileSystem_List(t *testing.T) {
	mfs := NewMemoryFileSystem()
	if err := mfs.MkdirAll("/out/nested", 0o755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"/out/b", "/out/a", "/out/nested/c"} {
		if err := mfs.WriteFileAtomic(name, nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	names, err := mfs.List("/out")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if !reflect.DeepEqual(names, []string{"a", "b"}) {
		t.Errorf("expected [a b], got %v", names)
	}

	if _, err := mfs.List("/nowhere"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected ErrNotExist for missing dir, got %v", err)
	}
}

func TestMemoryFileSystem_StatAndRemove(t *testing.T) {
	mfs := NewMemoryFileSystem()
	if err := mfs.MkdirAll("/a/b", 0o755); err != nil {
		t.Fatal(err)
	}

	info, err := mfs.Stat("/a")
	if err != nil || !info.IsDir() {
		t.Fatalf("expected /a to be a directory, err=%v", err)
	}
	if err := mfs.WriteFileAtomic("/a/b/f", []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := mfs.Remove("/a/b/f"); err != nil {
		t.Errorf("Remove failed: %v", err)
	}
	if _, err := mfs.Stat("/a/b/f"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected removed file to be gone, got %v", err)
	}
	if err := mfs.Remove("/a/b/f"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected ErrNotExist removing twice, got %v", err)
	}
}
