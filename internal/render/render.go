// Package render draws board snapshots to PNG images.
package render

import (
	"bytes"
	"embed"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"strconv"
	"sync"

	"github.com/pkg/errors"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/hailam/gomokuplay/internal/board"
)

//go:embed assets/stones/*.svg
var stoneAssets embed.FS

var stoneFiles = map[board.Stone]string{
	board.Black: "assets/stones/black.svg",
	board.White: "assets/stones/white.svg",
}

// Stones are rasterized at this multiple of the cell size and scaled down.
const renderScale = 3

// Theme defines the board colors.
type Theme struct {
	Wood      color.RGBA
	Grid      color.RGBA
	Label     color.RGBA
	Highlight color.RGBA
}

// DefaultTheme returns the default wooden board.
func DefaultTheme() Theme {
	return Theme{
		Wood:      color.RGBA{220, 179, 92, 255},
		Grid:      color.RGBA{40, 30, 20, 255},
		Label:     color.RGBA{60, 45, 30, 255},
		Highlight: color.RGBA{210, 40, 40, 255},
	}
}

// Options controls the image layout.
type Options struct {
	CellSize int  // pixels between grid lines
	Labels   bool // row and column indices in the margin
	Theme    Theme
	// Highlight marks one cell, typically the last move. NoCell for none.
	Highlight board.Cell
}

// DefaultOptions returns 32-pixel cells with labels.
func DefaultOptions() Options {
	return Options{
		CellSize:  32,
		Labels:    true,
		Theme:     DefaultTheme(),
		Highlight: board.NoCell,
	}
}

// Size returns the width and height of the image for opts.
func (o Options) Size() int {
	return o.margin()*2 + o.CellSize*(board.Size-1)
}

func (o Options) margin() int {
	if o.Labels {
		return o.CellSize * 3 / 2
	}
	return o.CellSize
}

func (o Options) point(row, col int) (float64, float64) {
	m := float64(o.margin())
	return m + float64(col*o.CellSize), m + float64(row*o.CellSize)
}

// Image draws the snapshot.
func Image(s board.Snapshot, opts Options) (*image.RGBA, error) {
	if opts.CellSize < 8 {
		return nil, errors.Errorf("cell size %d too small", opts.CellSize)
	}
	sprites, err := spritesFor(opts.CellSize)
	if err != nil {
		return nil, err
	}

	size := opts.Size()
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), image.NewUniform(opts.Theme.Wood), image.Point{}, draw.Src)

	drawGrid(img, opts)
	if opts.Labels {
		if err := drawLabels(img, opts); err != nil {
			return nil, err
		}
	}

	half := opts.CellSize / 2
	for row := 0; row < board.Size; row++ {
		for col := 0; col < board.Size; col++ {
			st := board.Stone(s[row][col])
			sprite := sprites[st]
			if sprite == nil {
				continue
			}
			x, y := opts.point(row, col)
			dr := image.Rect(int(x)-half, int(y)-half, int(x)-half+opts.CellSize, int(y)-half+opts.CellSize)
			draw.CatmullRom.Scale(img, dr, sprite, sprite.Bounds(), draw.Over, nil)
		}
	}

	if opts.Highlight.IsValid() {
		x, y := opts.point(opts.Highlight.Row(), opts.Highlight.Col())
		fillCircle(img, x, y, float64(opts.CellSize)/8, opts.Theme.Highlight)
	}
	return img, nil
}

// PNG encodes the snapshot as a PNG image.
func PNG(w io.Writer, s board.Snapshot, opts Options) error {
	img, err := Image(s, opts)
	if err != nil {
		return err
	}
	return errors.Wrap(png.Encode(w, img), "encode png")
}

// WriteFile writes the snapshot as a PNG file.
func WriteFile(path string, s board.Snapshot, opts Options) error {
	var buf bytes.Buffer
	if err := PNG(&buf, s, opts); err != nil {
		return err
	}
	return errors.Wrapf(os.WriteFile(path, buf.Bytes(), 0o644), "write %s", path)
}

func drawGrid(img *image.RGBA, opts Options) {
	size := opts.Size()
	scanner := rasterx.NewScannerGV(size, size, img, img.Bounds())
	stroker := rasterx.NewStroker(size, size, scanner)
	stroker.SetStroke(fixed.Int26_6(64), 4<<6, rasterx.ButtCap, nil, rasterx.FlatGap, rasterx.MiterClip)
	stroker.SetColor(opts.Theme.Grid)

	first, last := 0, board.Size-1
	for i := 0; i < board.Size; i++ {
		x0, y0 := opts.point(i, first)
		x1, y1 := opts.point(i, last)
		stroker.Start(rasterx.ToFixedP(x0, y0))
		stroker.Line(rasterx.ToFixedP(x1, y1))
		stroker.Stop(false)

		x0, y0 = opts.point(first, i)
		x1, y1 = opts.point(last, i)
		stroker.Start(rasterx.ToFixedP(x0, y0))
		stroker.Line(rasterx.ToFixedP(x1, y1))
		stroker.Stop(false)
	}
	stroker.Draw()
	stroker.Clear()

	// Star points.
	for _, r := range []int{3, 9, 15} {
		for _, c := range []int{3, 9, 15} {
			x, y := opts.point(r, c)
			fillCircle(img, x, y, float64(opts.CellSize)/10, opts.Theme.Grid)
		}
	}
}

func fillCircle(img *image.RGBA, cx, cy, radius float64, c color.Color) {
	b := img.Bounds()
	scanner := rasterx.NewScannerGV(b.Dx(), b.Dy(), img, b)
	filler := rasterx.NewFiller(b.Dx(), b.Dy(), scanner)
	filler.SetColor(c)
	rasterx.AddCircle(cx, cy, radius, filler)
	filler.Draw()
}

func drawLabels(img *image.RGBA, opts Options) error {
	face, err := labelFace(float64(opts.CellSize) * 0.45)
	if err != nil {
		return err
	}
	defer face.Close()

	d := &font.Drawer{Dst: img, Src: image.NewUniform(opts.Theme.Label), Face: face}
	ascent := face.Metrics().Ascent.Ceil()
	edge := float64(opts.margin()) / 2
	for i := 0; i < board.Size; i++ {
		label := strconv.Itoa(i)
		w := d.MeasureString(label).Ceil()

		// Column index above the grid.
		x, _ := opts.point(0, i)
		d.Dot = fixed.P(int(x)-w/2, int(edge)+ascent/2)
		d.DrawString(label)

		// Row index left of the grid.
		_, y := opts.point(i, 0)
		d.Dot = fixed.P(int(edge)-w/2, int(y)+ascent/2)
		d.DrawString(label)
	}
	return nil
}

var (
	fontOnce sync.Once
	fontData *opentype.Font
	fontErr  error
)

func labelFace(size float64) (font.Face, error) {
	fontOnce.Do(func() {
		fontData, fontErr = opentype.Parse(goregular.TTF)
	})
	if fontErr != nil {
		return nil, errors.Wrap(fontErr, "parse font")
	}
	face, err := opentype.NewFace(fontData, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	return face, errors.Wrap(err, "font face")
}

var (
	spriteMu    sync.Mutex
	spriteCache = map[int]map[board.Stone]*image.RGBA{}
)

// spritesFor returns the stone images rasterized for a cell size.
func spritesFor(cell int) (map[board.Stone]*image.RGBA, error) {
	spriteMu.Lock()
	defer spriteMu.Unlock()
	if s, ok := spriteCache[cell]; ok {
		return s, nil
	}

	renderSize := cell * renderScale
	sprites := make(map[board.Stone]*image.RGBA, len(stoneFiles))
	for st, path := range stoneFiles {
		data, err := stoneAssets.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "read %s", path)
		}
		icon, err := oksvg.ReadIconStream(bytes.NewReader(data))
		if err != nil {
			return nil, errors.Wrapf(err, "parse %s", path)
		}
		icon.SetTarget(0, 0, float64(renderSize), float64(renderSize))

		rgba := image.NewRGBA(image.Rect(0, 0, renderSize, renderSize))
		scanner := rasterx.NewScannerGV(renderSize, renderSize, rgba, rgba.Bounds())
		raster := rasterx.NewDasher(renderSize, renderSize, scanner)
		icon.Draw(raster, 1.0)
		sprites[st] = rgba
	}
	spriteCache[cell] = sprites
	return sprites, nil
}
