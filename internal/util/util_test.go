package util

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSafeName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty string", "", ""},
		{"plain", "run1", "run1"},
		{"spaces", "Alpha vs Bravo", "Alpha_vs_Bravo"},
		{"colon and slash", "run:2/b", "run_2_b"},
		{"quoted", `"night raid"`, "night_raid"},
		{"surrounding whitespace", "  x  ", "x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SafeName(tt.input)
			if result != tt.expected {
				t.Errorf("SafeName(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestIsGzip(t *testing.T) {
	tests := []struct {
		name     string
		header   []byte
		expected bool
	}{
		{"empty", nil, false},
		{"one byte", []byte{0x1f}, false},
		{"json", []byte(`{"`), false},
		{"gzip", []byte{0x1f, 0x8b, 0x08}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsGzip(tt.header); got != tt.expected {
				t.Errorf("IsGzip(%v) = %v, want %v", tt.header, got, tt.expected)
			}
		})
	}
}

func TestCreateAndOpenFile(t *testing.T) {
	for _, compress := range []bool{false, true} {
		path := filepath.Join(t.TempDir(), "data")

		w, err := CreateFile(path, compress)
		if err != nil {
			t.Fatalf("CreateFile failed: %v", err)
		}
		if _, err := io.WriteString(w, "hello\nworld\n"); err != nil {
			t.Fatalf("write failed: %v", err)
		}
		if err := w.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}

		raw, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("ReadFile failed: %v", err)
		}
		if IsGzip(raw) != compress {
			t.Errorf("compress=%v but gzip header=%v", compress, IsGzip(raw))
		}

		r, err := OpenFile(path)
		if err != nil {
			t.Fatalf("OpenFile failed: %v", err)
		}
		data, err := io.ReadAll(r)
		if err != nil {
			t.Fatalf("ReadAll failed: %v", err)
		}
		if err := r.Close(); err != nil {
			t.Errorf("Close failed: %v", err)
		}
		if string(data) != "hello\nworld\n" {
			t.Errorf("compress=%v: got %q", compress, data)
		}
	}
}

func TestOpenReader_Plain(t *testing.T) {
	r, closeFn, err := OpenReader(strings.NewReader("abc"))
	if err != nil {
		t.Fatalf("OpenReader failed: %v", err)
	}
	defer closeFn()

	data, _ := io.ReadAll(r)
	if string(data) != "abc" {
		t.Errorf("got %q", data)
	}
}

func TestOpenReader_CorruptGzip(t *testing.T) {
	_, _, err := OpenReader(strings.NewReader("\x1f\x8bnot really gzip"))
	if err == nil {
		t.Error("expected error for corrupt gzip header")
	}
}

func TestOpenFile_Missing(t *testing.T) {
	if _, err := OpenFile(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for missing file")
	}
}
