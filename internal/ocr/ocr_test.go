package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTestImage(t *testing.T, dir, name string) string {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			if (x+y)%2 == 0 {
				img.SetGray(x, y, color.Gray{Y: 230})
			} else {
				img.SetGray(x, y, color.Gray{Y: 20})
			}
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func tsvDoc(words ...string) string {
	var b strings.Builder
	b.WriteString("level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext\n")
	for i, w := range words {
		fmt.Fprintf(&b, "5\t1\t1\t1\t1\t%d\t0\t0\t10\t10\t95.0\t%s\n", i+1, w)
	}
	return b.String()
}

// tsvRunner maps the original page image name to canned tesseract TSV
// output. An optional gate blocks one page until another one finished, to
// exercise out-of-order completion.
type tsvRunner struct {
	byPage    map[string]string
	holdPage  string // page name blocked until release is closed
	afterPage string // page whose completion releases the hold
	release   chan struct{}
}

func (r *tsvRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	if name != "tesseract" {
		return nil, nil, fmt.Errorf("unexpected command %q", name)
	}
	// args[0] is the preprocessed artifact: "<orig>.prep.png"
	orig := filepath.Base(strings.TrimSuffix(args[0], ".prep.png"))

	if orig == r.holdPage {
		<-r.release
	}
	out, ok := r.byPage[orig]
	if !ok {
		return nil, nil, fmt.Errorf("no canned output for %q", orig)
	}
	if orig == r.afterPage && r.release != nil {
		close(r.release)
	}
	return []byte(out), nil, nil
}

func TestRunPreservesPageOrder(t *testing.T) {
	dir := t.TempDir()
	p1 := writeTestImage(t, dir, "page1.png")
	p3 := writeTestImage(t, dir, "page3.png")

	// Page 1 OCR is held back until page 3 completed, so results arrive in
	// reverse order. The concatenated text must still read 1, 2, 3.
	r := &tsvRunner{
		byPage: map[string]string{
			"page1.png": tsvDoc("primeira"),
			"page3.png": tsvDoc("terceira"),
		},
		holdPage:  "page1.png",
		afterPage: "page3.png",
		release:   make(chan struct{}),
	}
	e := NewEngine(Config{Workers: 2}, r, nil)

	pages := []PageTask{
		{Index: 0, NeedsOCR: true, ImagePath: p1},
		{Index: 1, Text: "segunda pagina com texto embutido"},
		{Index: 2, NeedsOCR: true, ImagePath: p3},
	}
	text, warns, err := e.Run(context.Background(), pages)
	if err != nil {
		t.Fatal(err)
	}
	if len(warns) != 0 {
		t.Errorf("warnings = %v", warns)
	}

	iFirst := strings.Index(text, "primeira")
	iSecond := strings.Index(text, "segunda")
	iThird := strings.Index(text, "terceira")
	if iFirst == -1 || iSecond == -1 || iThird == -1 {
		t.Fatalf("missing page text in %q", text)
	}
	if !(iFirst < iSecond && iSecond < iThird) {
		t.Errorf("page order broken: %q", text)
	}
}

func TestRunPageFailureDegradesToWarning(t *testing.T) {
	dir := t.TempDir()
	p1 := writeTestImage(t, dir, "page1.png")

	r := &tsvRunner{byPage: map[string]string{}} // no canned output -> error
	e := NewEngine(Config{Workers: 1}, r, nil)

	text, warns, err := e.Run(context.Background(), []PageTask{
		{Index: 0, NeedsOCR: true, ImagePath: p1},
		{Index: 1, Text: "texto embutido 42"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(warns) == 0 {
		t.Error("expected a warning for the failed page")
	}
	if !strings.Contains(text, "texto embutido 42") {
		t.Errorf("embedded page text lost: %q", text)
	}
}

func TestAssembleTSVFiltersLowConfidence(t *testing.T) {
	tsv := "level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext\n" +
		"5\t1\t1\t1\t1\t1\t0\t0\t5\t5\t96.0\tTotal\n" +
		"5\t1\t1\t1\t1\t2\t0\t0\t5\t5\t12.0\truido\n" +
		"5\t1\t1\t1\t2\t1\t0\t0\t5\t5\t88.0\t123,00\n" +
		"4\t1\t1\t1\t2\t0\t0\t0\t5\t5\t-1\t\n"

	got := assembleTSV(tsv, 0.35)
	want := "Total\n123,00"
	if got != want {
		t.Errorf("assembleTSV = %q, want %q", got, want)
	}
}

func TestNormalize(t *testing.T) {
	in := "Fatura  n 7\r\n\r\n\r\n\r\nTotal:\t123,00   \n----------\nfim"
	got := Normalize(in)

	if strings.Contains(got, "\r") {
		t.Error("CR survived")
	}
	if strings.Contains(got, "  ") {
		t.Error("double spaces survived")
	}
	if strings.Contains(got, "----------") {
		t.Error("box noise survived")
	}
	if strings.Contains(got, "\n\n\n") {
		t.Error("blank-line run survived")
	}
	if !strings.Contains(got, "Total: 123,00") {
		t.Errorf("content mangled: %q", got)
	}
}

func TestPreprocessImageProducesBinaryPNG(t *testing.T) {
	dir := t.TempDir()
	p := writeTestImage(t, dir, "page.png")

	out, err := PreprocessImage(p)
	if err != nil {
		t.Fatal(err)
	}
	f, err := os.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatal(err)
	}

	gray, ok := img.(*image.Gray)
	if !ok {
		t.Fatalf("preprocessed image is %T, want *image.Gray", img)
	}
	for _, px := range gray.Pix {
		if px != 0 && px != 255 {
			t.Fatalf("pixel %d not binarized", px)
		}
	}
}
