package images

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"log"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	baseImageName = "base_profile.png"

	// The badge is rasterized at bitmap font size and scaled up, so the
	// effective text height is roughly 13 * textScale pixels.
	textScale = 3
	padding   = 10
)

// Compositor renders a level badge onto the base profile image. Assets
// live on disk under the configured directory.
type Compositor struct {
	assetsDir string
}

func NewCompositor(assetsDir string) *Compositor {
	return &Compositor{assetsDir: assetsDir}
}

// LevelImage returns the base profile image with "Lv.N" composited into
// the bottom-right corner, PNG encoded.
func (c *Compositor) LevelImage(level int) ([]byte, error) {
	base, err := imaging.Open(filepath.Join(c.assetsDir, baseImageName))
	if err != nil {
		return nil, fmt.Errorf("open base profile image: %w", err)
	}
	return c.composite(base, level)
}

// LevelImageFromBytes composites onto caller-supplied image data instead
// of the asset on disk.
func (c *Compositor) LevelImageFromBytes(data []byte, level int) ([]byte, error) {
	base, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode base image: %w", err)
	}
	return c.composite(base, level)
}

func (c *Compositor) composite(base image.Image, level int) ([]byte, error) {
	badge := renderBadge(fmt.Sprintf("Lv.%d", level))

	canvas := imaging.Clone(base)
	pos := image.Pt(
		canvas.Bounds().Dx()-badge.Bounds().Dx()-padding,
		canvas.Bounds().Dy()-badge.Bounds().Dy()-padding,
	)
	out := imaging.Overlay(canvas, badge, pos, 1.0)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, out, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode level image: %w", err)
	}

	log.Printf("[Images] Level image composited: Lv.%d", level)
	return buf.Bytes(), nil
}

// EmotionImage loads a named emotion asset from the assets directory.
func (c *Compositor) EmotionImage(filename string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(c.assetsDir, "emotions", filename))
	if err != nil {
		return nil, fmt.Errorf("read emotion image %s: %w", filename, err)
	}
	return data, nil
}

// renderBadge draws white text with a black outline at bitmap font size
// and scales it up with nearest neighbour to keep the edges crisp.
func renderBadge(text string) image.Image {
	face := basicfont.Face7x13
	w := font.MeasureString(face, text).Ceil()
	h := face.Metrics().Height.Ceil()

	outline := 1
	small := image.NewNRGBA(image.Rect(0, 0, w+2*outline, h+2*outline))

	drawText := func(x, y int, col color.Color) {
		d := font.Drawer{
			Dst:  small,
			Src:  image.NewUniform(col),
			Face: face,
			Dot:  fixed.P(x, y+face.Metrics().Ascent.Ceil()),
		}
		d.DrawString(text)
	}

	for dx := -outline; dx <= outline; dx++ {
		for dy := -outline; dy <= outline; dy++ {
			if dx != 0 || dy != 0 {
				drawText(outline+dx, outline+dy, color.Black)
			}
		}
	}
	drawText(outline, outline, color.White)

	scaled := imaging.Resize(small, small.Bounds().Dx()*textScale, 0, imaging.NearestNeighbor)

	out := image.NewNRGBA(scaled.Bounds())
	draw.Draw(out, out.Bounds(), scaled, image.Point{}, draw.Src)
	return out
}
