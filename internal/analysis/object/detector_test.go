package object

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelsmith/reelsmith/internal/media"
)

func emptyFrame() media.RGBFrame {
	f := media.RGBFrame{W: media.FrameWidth, H: media.FrameHeight}
	f.Pix = make([]byte, f.W*f.H*3)
	return f
}

// paint fills a pixel rectangle with a solid color.
func paint(f media.RGBFrame, x0, y0, x1, y1 int, r, g, b byte) {
	for y := y0; y < y1 && y < f.H; y++ {
		for x := x0; x < x1 && x < f.W; x++ {
			i := (y*f.W + x) * 3
			f.Pix[i], f.Pix[i+1], f.Pix[i+2] = r, g, b
		}
	}
}

func TestClassifyScene(t *testing.T) {
	tests := []struct {
		name   string
		counts map[Kind]int
		want   Scene
	}{
		{"ceremony wins first", map[Kind]int{KindCeremony: 4, KindDancing: 9, KindCake: 2}, SceneCeremony},
		{"ceremony needs more than three", map[Kind]int{KindCeremony: 3}, ScenePreparation},
		{"dancing makes a party", map[Kind]int{KindDancing: 3}, SceneParty},
		{"cake makes a reception", map[Kind]int{KindCake: 1}, SceneReception},
		{"toast makes a reception", map[Kind]int{KindToast: 2}, SceneReception},
		{"nothing means preparation", map[Kind]int{}, ScenePreparation},
		{"people alone stay preparation", map[Kind]int{KindPeople: 12}, ScenePreparation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyScene(tt.counts))
		})
	}
}

func TestDetectFrameEmpty(t *testing.T) {
	counts := DetectFrame(emptyFrame(), 0)
	for _, kind := range Kinds() {
		assert.Zero(t, counts[kind], string(kind))
	}
}

func TestDetectCakeWhiteRegion(t *testing.T) {
	f := emptyFrame()
	// A broad white block, roughly cake-shaped.
	paint(f, 30, 30, 130, 80, 250, 250, 248)

	counts := DetectFrame(f, 0)
	assert.Greater(t, counts[KindCake], 0)
	assert.LessOrEqual(t, counts[KindCake], frameCaps[KindCake])
}

func TestDetectBouquetColorfulRegion(t *testing.T) {
	f := emptyFrame()
	// A compact saturated red blob.
	paint(f, 70, 40, 95, 65, 220, 30, 40)

	counts := DetectFrame(f, 0)
	assert.Greater(t, counts[KindBouquet], 0)
	assert.LessOrEqual(t, counts[KindBouquet], frameCaps[KindBouquet])
}

func TestDetectRingsSmallMetallicRegions(t *testing.T) {
	f := emptyFrame()
	// Two small warm metallic glints.
	paint(f, 20, 20, 32, 32, 200, 185, 150)
	paint(f, 100, 60, 112, 72, 200, 185, 150)

	counts := DetectFrame(f, 0)
	assert.GreaterOrEqual(t, counts[KindRings], 2)
	assert.LessOrEqual(t, counts[KindRings], frameCaps[KindRings])
}

func TestDancingRequiresMotionAndFaces(t *testing.T) {
	f := emptyFrame()
	// A skin-tone face-sized patch.
	paint(f, 70, 20, 95, 50, 210, 160, 130)

	still := DetectFrame(f, 0.05)
	assert.Zero(t, still[KindDancing])

	moving := DetectFrame(f, 0.5)
	require.Greater(t, moving[KindPeople], 0, "face proxy must fire for the patch")
	assert.Equal(t, moving[KindPeople], moving[KindDancing])
}

func TestCeremonyNeedsTwoFaces(t *testing.T) {
	f := emptyFrame()
	paint(f, 20, 20, 45, 50, 210, 160, 130)
	paint(f, 100, 20, 125, 50, 200, 150, 120)

	counts := DetectFrame(f, 0)
	require.GreaterOrEqual(t, counts[KindPeople], 2)
	assert.Equal(t, counts[KindPeople], counts[KindCeremony])
}

func TestFrameCapsAreEnforced(t *testing.T) {
	assert.Equal(t, 4, capCount(KindRings, 99))
	assert.Equal(t, 2, capCount(KindCake, 99))
	assert.Equal(t, 10, capCount(KindDancing, 99))
	assert.Equal(t, 3, capCount(KindBouquet, 99))
	assert.Equal(t, 8, capCount(KindCeremony, 99))
	assert.Equal(t, 6, capCount(KindToast, 99))
	assert.Equal(t, 1, capCount(KindRings, 1))
}
