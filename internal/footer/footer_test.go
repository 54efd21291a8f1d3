package footer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract(t *testing.T) {
	e := NewExtractor(nil)

	t.Run("all labels present", func(t *testing.T) {
		text := "Fatura FT 2025/11\nTotal sem IVA: 100,00\nTotal IVA: 23,00\nTotal com IVA: 123,00\n"
		got := e.Extract(text)

		require.NotNil(t, got.TotalWithTax)
		require.NotNil(t, got.TotalTax)
		require.NotNil(t, got.NetTotal)
		assert.Equal(t, 123.00, *got.TotalWithTax)
		assert.Equal(t, 23.00, *got.TotalTax)
		assert.Equal(t, 100.00, *got.NetTotal)
	})

	t.Run("grand total derived from parts", func(t *testing.T) {
		text := "Total líquido 1.000,00\nValor do IVA 230,00\n"
		got := e.Extract(text)

		require.NotNil(t, got.TotalWithTax)
		assert.Equal(t, 1230.00, *got.TotalWithTax)
	})

	t.Run("rate table breakdown", func(t *testing.T) {
		text := "Resumo de impostos\n100,00 23% 23,00\nTotal a pagar: 123,00\n"
		got := e.Extract(text)

		require.NotNil(t, got.StandardTaxRate)
		assert.Equal(t, 23.00, *got.StandardTaxRate)
		require.NotNil(t, got.NetTotal)
		assert.Equal(t, 100.00, *got.NetTotal)
		require.NotNil(t, got.TotalTax)
		assert.Equal(t, 23.00, *got.TotalTax)
		require.NotNil(t, got.TotalWithTax)
		assert.Equal(t, 123.00, *got.TotalWithTax)
	})

	t.Run("rate table rejected when tax not positive", func(t *testing.T) {
		text := "100,00 0% 0,00\n"
		got := e.Extract(text)

		assert.Nil(t, got.NetTotal)
		assert.Nil(t, got.TotalTax)
	})

	t.Run("standalone rate mention", func(t *testing.T) {
		text := "Artigos sujeitos a IVA (23%)\nTotal com IVA: 61,50\n"
		got := e.Extract(text)

		require.NotNil(t, got.StandardTaxRate)
		assert.Equal(t, 23.00, *got.StandardTaxRate)
	})

	t.Run("nothing found means nil, never zero", func(t *testing.T) {
		got := e.Extract("texto sem valores")

		assert.Nil(t, got.TotalWithTax)
		assert.Nil(t, got.TotalTax)
		assert.Nil(t, got.NetTotal)
		assert.Nil(t, got.StandardTaxRate)
	})
}
