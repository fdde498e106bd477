package compress

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/png"

	"git.home.luguber.info/inful/assetbuilder/internal/minifier"
)

// Compressor transforms one file's bytes.
type Compressor interface {
	// ID identifies the compressor and its settings; it is part of the cache key.
	ID() string
	Extensions() []string
	Compress(data []byte) ([]byte, error)
}

// PNGCompressor re-encodes PNG files, converting 8-bit pictures with 256
// colours or fewer to a paletted image. 16-bit pictures keep their depth.
type PNGCompressor struct {
	Level int // 0-7
}

func (c PNGCompressor) ID() string           { return fmt.Sprintf("png:o%d", c.Level) }
func (c PNGCompressor) Extensions() []string { return []string{".png"} }

func (c PNGCompressor) compressionLevel() png.CompressionLevel {
	switch {
	case c.Level >= 3:
		return png.BestCompression
	case c.Level >= 1:
		return png.DefaultCompression
	default:
		return png.BestSpeed
	}
}

func (c PNGCompressor) Compress(data []byte) ([]byte, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode png: %w", err)
	}
	if !isPaletted(img) && !isDeep(img) {
		if p, ok := toPaletted(img); ok {
			img = p
		}
	}

	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: c.compressionLevel()}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func isPaletted(img image.Image) bool {
	_, ok := img.(*image.Paletted)
	return ok
}

// isDeep reports 16 bits per channel. PNG palette entries hold 8 bits, so
// such images are only re-encoded.
func isDeep(img image.Image) bool {
	switch img.(type) {
	case *image.NRGBA64, *image.RGBA64, *image.Gray16:
		return true
	}
	return false
}

// toPaletted returns a lossless paletted copy of img when it has at most 256
// distinct colours.
func toPaletted(img image.Image) (*image.Paletted, bool) {
	b := img.Bounds()
	index := make(map[color.NRGBA]uint8)
	var palette color.Palette
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			if _, ok := index[c]; ok {
				continue
			}
			if len(palette) == 256 {
				return nil, false
			}
			index[c] = uint8(len(palette))
			palette = append(palette, c)
		}
	}

	p := image.NewPaletted(b, palette)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			p.SetColorIndex(x, y, index[c])
		}
	}
	return p, true
}

// GIFCompressor drops palette entries no frame pixel refers to.
type GIFCompressor struct {
	// Interlaced is requested by configuration. The standard encoder only
	// writes non-interlaced frames, so it only affects the cache key.
	Interlaced bool
}

func (c GIFCompressor) ID() string           { return fmt.Sprintf("gif:i%t", c.Interlaced) }
func (c GIFCompressor) Extensions() []string { return []string{".gif"} }

func (c GIFCompressor) Compress(data []byte) ([]byte, error) {
	g, err := gif.DecodeAll(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode gif: %w", err)
	}
	for _, frame := range g.Image {
		reducePalette(frame)
	}
	// Every frame now carries its own reduced local table.
	g.Config.ColorModel = nil
	g.BackgroundIndex = 0

	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, g); err != nil {
		return nil, fmt.Errorf("encode gif: %w", err)
	}
	return buf.Bytes(), nil
}

func reducePalette(p *image.Paletted) {
	var used [256]bool
	count := 0
	for _, idx := range p.Pix {
		if !used[idx] {
			used[idx] = true
			count++
		}
	}
	if count == len(p.Palette) || count == 0 {
		return
	}

	var remap [256]uint8
	palette := make(color.Palette, 0, count)
	for i, c := range p.Palette {
		if used[i] {
			remap[i] = uint8(len(palette))
			palette = append(palette, c)
		}
	}
	for i, idx := range p.Pix {
		p.Pix[i] = remap[idx]
	}
	p.Palette = palette
}

// JPEGCompressor removes metadata segments without touching the entropy-coded
// data, so the result is bit-for-bit identical once decoded.
type JPEGCompressor struct {
	// Progressive is requested by configuration; the standard encoder has no
	// progressive mode, so it only affects the cache key.
	Progressive bool
}

func (c JPEGCompressor) ID() string           { return fmt.Sprintf("jpeg:p%t", c.Progressive) }
func (c JPEGCompressor) Extensions() []string { return []string{".jpg", ".jpeg"} }

const (
	markerSOI  = 0xD8
	markerSOS  = 0xDA
	markerAPP0 = 0xE0
	markerAPPE = 0xEE // Adobe colour transform
	markerAPPF = 0xEF
	markerCOM  = 0xFE
)

func (c JPEGCompressor) Compress(data []byte) ([]byte, error) {
	if len(data) < 4 || data[0] != 0xFF || data[1] != markerSOI {
		return nil, fmt.Errorf("strip jpeg: missing SOI marker")
	}
	out := make([]byte, 0, len(data))
	out = append(out, 0xFF, markerSOI)

	i := 2
	for i < len(data) {
		if data[i] != 0xFF {
			return nil, fmt.Errorf("strip jpeg: expected marker at offset %d", i)
		}
		// Fill bytes.
		for i < len(data) && data[i] == 0xFF {
			i++
		}
		if i >= len(data) {
			return nil, fmt.Errorf("strip jpeg: truncated marker")
		}
		marker := data[i]
		i++

		if marker == markerSOS {
			out = append(out, 0xFF, marker)
			return append(out, data[i:]...), nil
		}
		if (marker >= 0xD0 && marker <= 0xD7) || marker == 0x01 {
			out = append(out, 0xFF, marker)
			continue
		}
		if i+2 > len(data) {
			return nil, fmt.Errorf("strip jpeg: truncated segment length")
		}
		length := int(data[i])<<8 | int(data[i+1])
		if length < 2 || i+length > len(data) {
			return nil, fmt.Errorf("strip jpeg: bad segment length at offset %d", i)
		}
		segment := data[i : i+length]
		i += length

		if dropSegment(marker, segment) {
			continue
		}
		out = append(out, 0xFF, marker)
		out = append(out, segment...)
	}
	return nil, fmt.Errorf("strip jpeg: no scan data")
}

func dropSegment(marker byte, segment []byte) bool {
	switch {
	case marker == markerCOM:
		return true
	case marker == markerAPP0:
		return !bytes.HasPrefix(segment[2:], []byte("JFIF\x00"))
	case marker == markerAPPE:
		return false
	case marker > markerAPP0 && marker <= markerAPPF:
		return true
	}
	return false
}

// SVGCompressor minifies SVG markup.
type SVGCompressor struct{}

func (SVGCompressor) ID() string           { return "svg:minify" }
func (SVGCompressor) Extensions() []string { return []string{".svg"} }

func (SVGCompressor) Compress(data []byte) ([]byte, error) {
	return minifier.Minify(minifier.MediaSVG, data)
}

// Settings carries the configurable compressor knobs.
type Settings struct {
	GIFInterlaced   bool
	JPEGProgressive bool
	PNGLevel        int
}

// DefaultCompressors returns one compressor per supported image format.
func DefaultCompressors(s Settings) []Compressor {
	return []Compressor{
		GIFCompressor{Interlaced: s.GIFInterlaced},
		JPEGCompressor{Progressive: s.JPEGProgressive},
		PNGCompressor{Level: s.PNGLevel},
		SVGCompressor{},
	}
}
