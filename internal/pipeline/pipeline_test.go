package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortcodeproject/OCR/internal/common"
	"github.com/fortcodeproject/OCR/internal/document"
	"github.com/fortcodeproject/OCR/internal/footer"
	"github.com/fortcodeproject/OCR/internal/llm"
	"github.com/fortcodeproject/OCR/internal/ocr"
	"github.com/fortcodeproject/OCR/internal/reconcile"
)

func pngBytes(t *testing.T) []byte {
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
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// tesseractStub answers every tesseract invocation with the same canned TSV
// and fails loudly on anything else, so a test can prove OCR never ran.
type tesseractStub struct {
	words  []string
	called bool
}

func (r *tesseractStub) Run(_ context.Context, name string, _ ...string) ([]byte, []byte, error) {
	r.called = true
	if name != "tesseract" {
		return nil, nil, fmt.Errorf("unexpected command %q", name)
	}
	var b strings.Builder
	b.WriteString("level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext\n")
	for i, w := range r.words {
		fmt.Fprintf(&b, "5\t1\t1\t1\t1\t%d\t0\t0\t10\t10\t95.0\t%s\n", i+1, w)
	}
	return []byte(b.String()), nil, nil
}

type stubExtractor struct {
	invoice llm.RawInvoice
	err     error
	gotText string
}

func (s *stubExtractor) ExtractInvoice(_ context.Context, req llm.ExtractRequest) (llm.RawInvoice, []byte, error) {
	s.gotText = req.OCRText
	if s.err != nil {
		return llm.RawInvoice{}, nil, s.err
	}
	return s.invoice, nil, nil
}

func newTestProcessor(runner ocr.Runner, fields llm.FieldExtractor) *Processor {
	loader := document.NewLoader(document.Config{}, runner, nil)
	engine := ocr.NewEngine(ocr.Config{Workers: 1}, runner, nil)
	return NewProcessor(nil, loader, engine, footer.NewExtractor(nil), fields, reconcile.NewEngine(common.ReconcileConfig{}, nil), 0)
}

func TestProcessScannedInvoice(t *testing.T) {
	runner := &tesseractStub{words: []string{
		"Servico", "de", "manutencao", "121,00",
		"TOTAL", "A", "PAGAR", "121,00",
	}}
	fields := &stubExtractor{invoice: llm.RawInvoice{
		SupplierName:  "Servicos Tecnicos SA",
		InvoiceNumber: "2024/55",
		IssueDate:     "15-03-2024",
		Items: []llm.RawLineItem{
			{"descricao": "Servico de manutencao", "preco_total_item": 121.00, "quantidade": float64(1), "taxa": float64(21)},
		},
	}}
	p := newTestProcessor(runner, fields)

	res, err := p.Process(context.Background(), pngBytes(t), "fatura.png", "")
	require.NoError(t, err)
	require.NotEmpty(t, res.RequestID)

	assert.Contains(t, res.OCRText, "TOTAL A PAGAR")
	assert.Equal(t, res.OCRText, fields.gotText)

	rec := res.Record
	assert.Equal(t, "Servicos Tecnicos SA", rec.SupplierName)
	assert.Equal(t, "2024/55", rec.InvoiceNumber)
	require.Len(t, rec.Items, 1)
	assert.InDelta(t, 100.00, rec.Items[0].UnitPrice, 1e-9)
	assert.InDelta(t, 21.00, rec.TotalTax, 1e-9)
	assert.InDelta(t, 121.00, rec.TotalWithTax, 1e-9)
	assert.InDelta(t, 121.00, rec.AmountPaid, 1e-9)
	assert.False(t, res.Degraded)
}

func TestProcessRejectsUnsupportedFormatBeforeOCR(t *testing.T) {
	runner := &tesseractStub{}
	p := newTestProcessor(runner, &stubExtractor{})

	_, err := p.Process(context.Background(), []byte("hello"), "contrato.docx", "")
	require.ErrorIs(t, err, common.ErrUnsupportedFormat)
	assert.False(t, runner.called)
}

func TestProcessEmptyInput(t *testing.T) {
	p := newTestProcessor(&tesseractStub{}, &stubExtractor{})

	_, err := p.Process(context.Background(), nil, "fatura.pdf", "")
	require.ErrorIs(t, err, common.ErrEmptyInput)
}

func TestProcessNoTextExtracted(t *testing.T) {
	// tesseract finds nothing on the page
	p := newTestProcessor(&tesseractStub{words: nil}, &stubExtractor{})

	_, err := p.Process(context.Background(), pngBytes(t), "em_branco.png", "")
	require.ErrorIs(t, err, common.ErrNoTextExtracted)
}

func TestProcessStructuredExtractionFailureIsTerminal(t *testing.T) {
	runner := &tesseractStub{words: []string{"algum", "texto", "123"}}
	fields := &stubExtractor{err: errors.New("status 500")}
	p := newTestProcessor(runner, fields)

	_, err := p.Process(context.Background(), pngBytes(t), "fatura.png", "")
	require.ErrorIs(t, err, common.ErrStructuredExtraction)
}
