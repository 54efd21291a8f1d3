package ocr

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"

	_ "image/jpeg"
)

// PreprocessImage prepares a page image for text recognition: grayscale
// conversion followed by Otsu binarization for contrast maximization. The
// result is written next to the input and its path returned. The pipeline is
// deterministic: the same input always yields the same output bytes.
func PreprocessImage(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	img, _, err := image.Decode(f)
	_ = f.Close()
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", path, err)
	}

	gray := toGray(img)
	bin := binarize(gray, otsuThreshold(gray))

	out := path + ".prep.png"
	w, err := os.Create(out)
	if err != nil {
		return "", err
	}
	if err := png.Encode(w, bin); err != nil {
		_ = w.Close()
		return "", err
	}
	return out, w.Close()
}

func toGray(img image.Image) *image.Gray {
	b := img.Bounds()
	g := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			g.Set(x, y, color.GrayModel.Convert(img.At(x, y)))
		}
	}
	return g
}

// otsuThreshold picks the binarization threshold that maximizes between-class
// variance over the grayscale histogram.
func otsuThreshold(g *image.Gray) uint8 {
	var hist [256]int
	for _, px := range g.Pix {
		hist[px]++
	}
	total := len(g.Pix)
	if total == 0 {
		return 128
	}

	var sum float64
	for i, c := range hist {
		sum += float64(i) * float64(c)
	}

	var sumB, wB float64
	var best float64
	threshold := uint8(128)
	for t := 0; t < 256; t++ {
		wB += float64(hist[t])
		if wB == 0 {
			continue
		}
		wF := float64(total) - wB
		if wF == 0 {
			break
		}
		sumB += float64(t) * float64(hist[t])
		mB := sumB / wB
		mF := (sum - sumB) / wF
		between := wB * wF * (mB - mF) * (mB - mF)
		if between > best {
			best = between
			threshold = uint8(t)
		}
	}
	return threshold
}

func binarize(g *image.Gray, threshold uint8) *image.Gray {
	out := image.NewGray(g.Bounds())
	for i, px := range g.Pix {
		if px > threshold {
			out.Pix[i] = 255
		} else {
			out.Pix[i] = 0
		}
	}
	return out
}
