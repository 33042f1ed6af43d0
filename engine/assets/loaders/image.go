package loaders

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"

	"github.com/spaghettifunk/resident/engine/core"
	"github.com/spaghettifunk/resident/engine/renderer/metadata"
)

// Image is a decoded picture as tightly packed, non premultiplied RGBA8 rows.
type Image struct {
	Width  uint32
	Height uint32
	Pixels []byte
	// Format is the name of the decoder that read the file.
	Format string
}

// Shape is a single layer RGBA8 texture with a full mip chain.
func (img *Image) Shape() metadata.TextureShape {
	return metadata.Shape2D(img.Width, img.Height, metadata.FormatRGBA8Unorm)
}

type ImageLoader struct {
	FlipY bool
}

func (il *ImageLoader) Load(path string) (interface{}, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, err := il.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

// Decode reads any registered image format and converts it to RGBA8.
func (il *ImageLoader) Decode(r io.Reader) (*Image, error) {
	src, format, err := image.Decode(r)
	if err != nil {
		return nil, err
	}
	b := src.Bounds()
	if b.Empty() {
		return nil, fmt.Errorf("image has no pixels: %w", core.ErrInvalidConfiguration)
	}

	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	if il.FlipY {
		flipRows(dst.Pix, dst.Stride, b.Dy())
	}
	return &Image{
		Width:  uint32(b.Dx()),
		Height: uint32(b.Dy()),
		Pixels: dst.Pix,
		Format: format,
	}, nil
}

func flipRows(pix []byte, stride, rows int) {
	tmp := make([]byte, stride)
	for top, bottom := 0, rows-1; top < bottom; top, bottom = top+1, bottom-1 {
		a := pix[top*stride : (top+1)*stride]
		b := pix[bottom*stride : (bottom+1)*stride]
		copy(tmp, a)
		copy(a, b)
		copy(b, tmp)
	}
}
