package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fortcodeproject/OCR/internal/common"
)

// fakeRasterizer pretends to be pdftoppm: it writes n page PNGs next to the
// requested output prefix.
type fakeRasterizer struct {
	pages int
	calls int
}

func (f *fakeRasterizer) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.calls++
	if name != "pdftoppm" {
		return nil, nil, fmt.Errorf("unexpected command %q", name)
	}
	prefix := args[len(args)-1]
	for i := 1; i <= f.pages; i++ {
		if err := os.WriteFile(fmt.Sprintf("%s-%d.png", prefix, i), tinyPNG(), 0o600); err != nil {
			return nil, nil, err
		}
	}
	return nil, nil, nil
}

func tinyPNG() []byte {
	img := image.NewGray(image.Rect(0, 0, 4, 4))
	img.SetGray(1, 1, color.Gray{Y: 255})
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}

func TestLoadRejectsUnsupportedFormat(t *testing.T) {
	l := NewLoader(Config{}, &fakeRasterizer{}, nil)

	_, err := l.Load(context.Background(), []byte("x"), "doc.docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document")
	if !errors.Is(err, common.ErrUnsupportedFormat) {
		t.Fatalf("err = %v, want ErrUnsupportedFormat", err)
	}
}

func TestLoadRejectsEmptyInput(t *testing.T) {
	l := NewLoader(Config{}, &fakeRasterizer{}, nil)

	_, err := l.Load(context.Background(), nil, "scan.pdf", "application/pdf")
	if !errors.Is(err, common.ErrEmptyInput) {
		t.Fatalf("err = %v, want ErrEmptyInput", err)
	}
}

func TestLoadUndecodableImage(t *testing.T) {
	l := NewLoader(Config{}, &fakeRasterizer{}, nil)

	_, err := l.Load(context.Background(), []byte("not an image"), "scan.png", "image/png")
	if !errors.Is(err, common.ErrEmptyInput) {
		t.Fatalf("err = %v, want ErrEmptyInput", err)
	}
}

func TestLoadImageSinglePage(t *testing.T) {
	l := NewLoader(Config{}, &fakeRasterizer{}, nil)

	src, err := l.Load(context.Background(), tinyPNG(), "scan.png", "image/png")
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	if len(src.Pages) != 1 {
		t.Fatalf("pages = %d, want 1", len(src.Pages))
	}
	p := src.Pages[0]
	if !p.NeedsOCR || p.ImagePath == "" {
		t.Errorf("page = %+v, want NeedsOCR with image path", p)
	}
	if _, err := os.Stat(p.ImagePath); err != nil {
		t.Errorf("image path not materialized: %v", err)
	}
}

func TestLoadScannedPDFRasterizesAllPages(t *testing.T) {
	// Junk bytes: the embedded-text probe fails, so the loader falls back to
	// rasterizing and the rendered images define the page count.
	fr := &fakeRasterizer{pages: 3}
	l := NewLoader(Config{DPI: 150}, fr, nil)

	src, err := l.Load(context.Background(), []byte("%PDF-1.4 scanned junk"), "scan.pdf", "application/pdf")
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	if fr.calls != 1 {
		t.Errorf("rasterizer calls = %d, want 1", fr.calls)
	}
	if len(src.Pages) != 3 {
		t.Fatalf("pages = %d, want 3", len(src.Pages))
	}
	for i, p := range src.Pages {
		if p.Index != i {
			t.Errorf("page %d has index %d", i, p.Index)
		}
		if !p.NeedsOCR || p.ImagePath == "" {
			t.Errorf("page %d = %+v, want NeedsOCR with image path", i, p)
		}
	}
}

func TestSourceCloseRemovesArtifacts(t *testing.T) {
	l := NewLoader(Config{}, &fakeRasterizer{pages: 1}, nil)

	src, err := l.Load(context.Background(), []byte("%PDF junk"), "scan.pdf", "")
	if err != nil {
		t.Fatal(err)
	}
	dir := filepath.Dir(src.Pages[0].ImagePath)
	src.Close()
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("temp dir %s survived Close", dir)
	}
}

func TestMeaningfulText(t *testing.T) {
	long := strings.Repeat("fatura ", 10)

	tests := []struct {
		name string
		in   string
		want bool
	}{
		{"long with digit", long + "total 123,00", true},
		{"long without digit", long, false},
		{"short with digit", "nr 7", false},
		{"whitespace only", "   \n\t  ", false},
		{"boundary length no digit", strings.Repeat("a", 41), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := meaningfulText(tt.in); got != tt.want {
				t.Errorf("meaningfulText(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestSortByPageNumber(t *testing.T) {
	in := []string{"p-10.png", "p-2.png", "p-1.png"}
	got := sortByPageNumber(in)
	want := []string{"p-1.png", "p-2.png", "p-10.png"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sortByPageNumber = %v, want %v", got, want)
		}
	}
}
