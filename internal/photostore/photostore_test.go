package photostore

import (
	"errors"
	"io"
	"strings"
	"testing"
)

func TestSaveAndOpen(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	key, err := s.Save("visits/abc.jpg", strings.NewReader("jpegbytes"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if key != "visits/abc.jpg" {
		t.Errorf("key: got %q", key)
	}

	f, err := s.Open(key)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	data, _ := io.ReadAll(f)
	if string(data) != "jpegbytes" {
		t.Errorf("content: got %q", data)
	}
}

func TestOpen_Missing(t *testing.T) {
	s, _ := New(t.TempDir())
	if _, err := s.Open("visits/nope.jpg"); !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestKeySanitization(t *testing.T) {
	s, _ := New(t.TempDir())

	// None of these may escape the root.
	bad := []string{
		"../../../etc/passwd",
		"visits/../../secret",
		"..",
		"",
	}
	for _, key := range bad {
		if _, err := s.Save(key, strings.NewReader("x")); err == nil {
			t.Errorf("Save(%q) should fail", key)
		}
		if _, err := s.Open(key); err == nil || errors.Is(err, ErrNotFound) {
			t.Errorf("Open(%q) should fail with an invalid-key error", key)
		}
	}

	// A leading slash is tolerated (the upload path travels as
	// "/uploads/visits/x.jpg" and gets trimmed upstream, but be lenient).
	if _, err := s.Save("/visits/ok.jpg", strings.NewReader("x")); err != nil {
		t.Errorf("leading slash should be accepted: %v", err)
	}
}

func TestDelete_MissingIsFine(t *testing.T) {
	s, _ := New(t.TempDir())
	if err := s.Delete("visits/nothing.jpg"); err != nil {
		t.Errorf("delete missing: %v", err)
	}
}
