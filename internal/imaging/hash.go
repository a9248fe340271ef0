package imaging

import (
	"fmt"
	"image"
	"math"
	"math/bits"

	"golang.org/x/image/draw"
)

const hashSize = 8

// MaxDistance is returned for fingerprints that cannot be compared, such as
// hashes of different lengths. It exceeds any real bit distance.
const MaxDistance = math.MaxInt32

// Hashes computes the two perceptual fingerprints of an image: a
// gradient-based difference hash and a regional average hash. Each is 64
// bits packed into 16 hex characters.
func Hashes(img image.Image) (dhash, ahash string) {
	return DifferenceHash(img), AverageHash(img)
}

// DifferenceHash resizes to 9x8 grayscale and sets a bit wherever a pixel is
// brighter than its right neighbor.
func DifferenceHash(img image.Image) string {
	resized := resize(img, hashSize+1, hashSize)

	var h uint64
	for y := 0; y < hashSize; y++ {
		for x := 0; x < hashSize; x++ {
			h <<= 1
			if grayAt(resized, x, y) > grayAt(resized, x+1, y) {
				h |= 1
			}
		}
	}
	return fmt.Sprintf("%016x", h)
}

// AverageHash resizes to 32x32 grayscale, thresholds against the mean
// intensity of the whole image, and keeps only the central 8x8 region to
// reduce edge-artifact sensitivity.
func AverageHash(img image.Image) string {
	resized := resize(img, 32, 32)

	var sum int
	var pixels [32][32]int
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			pixels[y][x] = grayAt(resized, x, y)
			sum += pixels[y][x]
		}
	}
	average := float64(sum) / (32 * 32)

	var h uint64
	for y := 12; y < 20; y++ {
		for x := 12; x < 20; x++ {
			h <<= 1
			if float64(pixels[y][x]) > average {
				h |= 1
			}
		}
	}
	return fmt.Sprintf("%016x", h)
}

// HammingDistance counts differing bits between two hex fingerprints.
// Fingerprints of different lengths are incomparable and yield MaxDistance.
func HammingDistance(a, b string) int {
	if len(a) != len(b) {
		return MaxDistance
	}

	distance := 0
	for i := 0; i < len(a); i++ {
		va, vb := hexDigit(a[i]), hexDigit(b[i])
		if va < 0 || vb < 0 {
			return MaxDistance
		}
		distance += bits.OnesCount8(uint8(va ^ vb))
	}
	return distance
}

func hexDigit(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10
	}
	return -1
}

func resize(img image.Image, width, height int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

func grayAt(img *image.RGBA, x, y int) int {
	r, g, b, _ := img.At(x, y).RGBA()
	return int((r>>8 + g>>8 + b>>8) / 3)
}
