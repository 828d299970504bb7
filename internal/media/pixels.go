package media

import "math"

// blockSize is the square block edge used for region detection.
// 160x90 frames give a 16x9 block grid.
const blockSize = 10

// MeanGray returns the mean grayscale intensity of a frame in [0, 1].
func MeanGray(f GrayFrame) float64 {
	if len(f.Pix) == 0 {
		return 0
	}
	var sum float64
	for _, p := range f.Pix {
		sum += float64(p)
	}
	return sum / float64(len(f.Pix)) / 255.0
}

// StdDevGray returns the grayscale standard deviation of a frame in [0, 1].
func StdDevGray(f GrayFrame) float64 {
	if len(f.Pix) == 0 {
		return 0
	}
	mean := MeanGray(f) * 255.0
	var sum float64
	for _, p := range f.Pix {
		d := float64(p) - mean
		sum += d * d
	}
	return math.Sqrt(sum/float64(len(f.Pix))) / 255.0
}

// MeanAbsDiff returns the mean absolute pixel difference between two
// equally sized grayscale frames, normalized to [0, 1]. A motion proxy.
func MeanAbsDiff(a, b GrayFrame) float64 {
	if len(a.Pix) == 0 || len(a.Pix) != len(b.Pix) {
		return 0
	}
	var sum float64
	for i := range a.Pix {
		d := int(a.Pix[i]) - int(b.Pix[i])
		if d < 0 {
			d = -d
		}
		sum += float64(d)
	}
	return sum / float64(len(a.Pix)) / 255.0
}

// PixelMask classifies a single RGB pixel.
type PixelMask func(r, g, b byte) bool

// SkinMask matches skin-tone pixels. Classic RGB rule: red dominant,
// moderate spread, not too dark.
func SkinMask(r, g, b byte) bool {
	rf, gf, bf := int(r), int(g), int(b)
	if rf < 95 || gf < 40 || bf < 20 {
		return false
	}
	maxC := max3(rf, gf, bf)
	minC := min3(rf, gf, bf)
	if maxC-minC < 15 {
		return false
	}
	return rf > gf && rf > bf && abs(rf-gf) > 15
}

// WhiteMask matches bright low-saturation pixels (dresses, cakes).
func WhiteMask(r, g, b byte) bool {
	rf, gf, bf := int(r), int(g), int(b)
	if rf < 190 || gf < 190 || bf < 180 {
		return false
	}
	return max3(rf, gf, bf)-min3(rf, gf, bf) < 30
}

// MetallicMask matches bright desaturated mid-tone pixels (gold/silver
// highlights on rings and glassware).
func MetallicMask(r, g, b byte) bool {
	rf, gf, bf := int(r), int(g), int(b)
	brightness := (rf + gf + bf) / 3
	if brightness < 140 || brightness > 250 {
		return false
	}
	spread := max3(rf, gf, bf) - min3(rf, gf, bf)
	// Gold skews warm, silver is flat; both stay fairly desaturated.
	return spread < 60 && rf >= bf
}

// ColorfulMask matches strongly saturated pixels (bouquets, decor).
func ColorfulMask(r, g, b byte) bool {
	rf, gf, bf := int(r), int(g), int(b)
	return max3(rf, gf, bf)-min3(rf, gf, bf) > 90
}

// Region is a 4-connected component of mask-positive blocks.
type Region struct {
	Blocks                     int
	MinBX, MinBY, MaxBX, MaxBY int
}

// AspectRatio returns width/height of the region's block bounding box.
func (r Region) AspectRatio() float64 {
	w := float64(r.MaxBX - r.MinBX + 1)
	h := float64(r.MaxBY - r.MinBY + 1)
	return w / h
}

// Regions partitions the frame into blockSize² blocks, marks blocks where
// at least 35% of pixels pass the mask, and returns the 4-connected
// components with at least minBlocks blocks.
func Regions(f RGBFrame, mask PixelMask, minBlocks int) []Region {
	bw := f.W / blockSize
	bh := f.H / blockSize
	if bw == 0 || bh == 0 {
		return nil
	}

	threshold := blockSize * blockSize * 35 / 100
	marked := make([]bool, bw*bh)
	for by := 0; by < bh; by++ {
		for bx := 0; bx < bw; bx++ {
			hits := 0
			for y := by * blockSize; y < (by+1)*blockSize; y++ {
				row := y * f.W * 3
				for x := bx * blockSize; x < (bx+1)*blockSize; x++ {
					i := row + x*3
					if mask(f.Pix[i], f.Pix[i+1], f.Pix[i+2]) {
						hits++
					}
				}
			}
			marked[by*bw+bx] = hits >= threshold
		}
	}

	visited := make([]bool, bw*bh)
	var regions []Region
	for start := range marked {
		if !marked[start] || visited[start] {
			continue
		}
		// Iterative flood fill over 4-neighbors.
		region := Region{MinBX: bw, MinBY: bh, MaxBX: -1, MaxBY: -1}
		stack := []int{start}
		visited[start] = true
		for len(stack) > 0 {
			idx := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			bx, by := idx%bw, idx/bw
			region.Blocks++
			region.MinBX = min(region.MinBX, bx)
			region.MinBY = min(region.MinBY, by)
			region.MaxBX = max(region.MaxBX, bx)
			region.MaxBY = max(region.MaxBY, by)
			for _, n := range [4]int{idx - 1, idx + 1, idx - bw, idx + bw} {
				if n < 0 || n >= bw*bh || visited[n] || !marked[n] {
					continue
				}
				// Left/right neighbors must stay on the same row.
				if (n == idx-1 || n == idx+1) && n/bw != by {
					continue
				}
				visited[n] = true
				stack = append(stack, n)
			}
		}
		if region.Blocks >= minBlocks {
			regions = append(regions, region)
		}
	}
	return regions
}

// CountFaces estimates the number of faces in a frame as the count of
// plausibly sized skin-tone regions. It is a coarse stand-in for a
// cascade detector and is deliberately stable for identical input.
func CountFaces(f RGBFrame) int {
	count := 0
	for _, region := range Regions(f, SkinMask, 1) {
		// Faces at analysis resolution span roughly 1-20 blocks.
		if region.Blocks <= 20 {
			count++
		}
	}
	return count
}

// MeanSaturation returns the mean per-pixel channel spread in [0, 1].
func MeanSaturation(f RGBFrame) float64 {
	n := f.W * f.H
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n*3; i += 3 {
		rf, gf, bf := int(f.Pix[i]), int(f.Pix[i+1]), int(f.Pix[i+2])
		sum += float64(max3(rf, gf, bf) - min3(rf, gf, bf))
	}
	return sum / float64(n) / 255.0
}

// MeanWarmth returns the mean red-minus-blue balance in [-1, 1].
// Positive values indicate warm (candlelight, sunset) palettes.
func MeanWarmth(f RGBFrame) float64 {
	n := f.W * f.H
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n*3; i += 3 {
		sum += float64(int(f.Pix[i]) - int(f.Pix[i+2]))
	}
	return sum / float64(n) / 255.0
}

// Gray converts an RGB frame to grayscale using BT.601 luma weights.
func (f RGBFrame) Gray() GrayFrame {
	g := GrayFrame{Time: f.Time, W: f.W, H: f.H, Pix: make([]byte, f.W*f.H)}
	for i := range g.Pix {
		j := i * 3
		g.Pix[i] = byte(0.299*float64(f.Pix[j]) + 0.587*float64(f.Pix[j+1]) + 0.114*float64(f.Pix[j+2]))
	}
	return g
}

// Luma returns the frame's mean luminance in [0, 1] from RGB.
func Luma(f RGBFrame) float64 {
	n := f.W * f.H
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n*3; i += 3 {
		sum += 0.299*float64(f.Pix[i]) + 0.587*float64(f.Pix[i+1]) + 0.114*float64(f.Pix[i+2])
	}
	return sum / float64(n) / 255.0
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func max3(a, b, c int) int { return max(a, max(b, c)) }
func min3(a, b, c int) int { return min(a, min(b, c)) }
