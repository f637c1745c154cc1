package imagehash

import (
	"image"
	"sort"
)

// blockhash grid width; 16x16 blocks of one bit each yield a 256-bit hash.
const blockhashGrid = 16

// blockhash256 computes a 256-bit perceptual blockhash: the image is divided
// into a 16x16 grid, each cell's mean pixel value is compared to the median
// of its horizontal band of 64 cells, and each comparison contributes one
// bit. The result is robust to re-encoding and mild resampling.
func blockhash256(img *image.NRGBA) PerceptualHash {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	var sums [blockhashGrid * blockhashGrid]float64
	var counts [blockhashGrid * blockhashGrid]float64

	for y := 0; y < h; y++ {
		by := y * blockhashGrid / h
		row := img.Pix[y*img.Stride : y*img.Stride+4*w]
		for x := 0; x < w; x++ {
			bx := x * blockhashGrid / w
			r, g, b, a := row[4*x], row[4*x+1], row[4*x+2], row[4*x+3]
			var v float64
			if a == 0 {
				// Fully transparent pixels count as white.
				v = 3 * 255
			} else {
				v = float64(r) + float64(g) + float64(b)
			}
			sums[by*blockhashGrid+bx] += v
			counts[by*blockhashGrid+bx]++
		}
	}

	var means [blockhashGrid * blockhashGrid]float64
	for i := range means {
		if counts[i] > 0 {
			means[i] = sums[i] / counts[i]
		}
	}

	// Compare each block against the median of its band of 4 grid rows.
	var out PerceptualHash
	const band = blockhashGrid * blockhashGrid / 4
	for b := 0; b < 4; b++ {
		med := median(means[b*band : (b+1)*band])
		for i := 0; i < band; i++ {
			if means[b*band+i] > med {
				bit := b*band + i
				out[bit/8] |= 1 << (7 - bit%8)
			}
		}
	}
	return out
}

func median(vals []float64) float64 {
	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}
