package ocr

import (
	"strconv"
	"strings"
)

// assembleTSV rebuilds recognized text from tesseract TSV output, discarding
// word fragments whose confidence falls below minConfidence (0..1). Line
// structure follows the block/paragraph/line ids, not fragment order quirks.
func assembleTSV(tsv string, minConfidence float64) string {
	cutoff := minConfidence * 100

	var b strings.Builder
	var lastKey string
	wordsInLine := 0

	for i, ln := range strings.Split(tsv, "\n") {
		if i == 0 || ln == "" {
			continue // header
		}
		cols := strings.Split(ln, "\t")
		if len(cols) < 12 {
			continue
		}
		if cols[0] != "5" { // word rows only
			continue
		}
		conf, err := strconv.ParseFloat(cols[10], 64)
		if err != nil || conf < 0 || conf < cutoff {
			continue
		}
		word := strings.TrimSpace(cols[11])
		if word == "" {
			continue
		}

		key := cols[1] + ":" + cols[2] + ":" + cols[3] + ":" + cols[4]
		if key != lastKey {
			if lastKey != "" {
				b.WriteByte('\n')
			}
			lastKey = key
			wordsInLine = 0
		}
		if wordsInLine > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(word)
		wordsInLine++
	}
	return b.String()
}
