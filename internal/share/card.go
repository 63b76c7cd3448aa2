// Package share renders the downloadable result artifacts: the PNG share
// card and the QR code pointing back at the service.
package share

import (
	"bytes"
	"fmt"
	"image/color"
	"log/slog"
	"os"
	"strings"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
)

const (
	defaultWidth  = 900
	defaultHeight = 1400

	titleSize  = 52
	headerSize = 36
	bodySize   = 28
	footerSize = 24

	panelMargin  = 60
	panelPadding = 50
	panelRadius  = 30

	// wrapWidth is in runes, not pixels. Korean body text is effectively
	// fixed-width at this size, so rune counting wraps cleanly.
	wrapWidth = 24

	footerText = "QR 스캔하고 직접 체험해보세요!"
)

// Card gradient, same palette as the service UI.
var (
	gradientTop    = color.RGBA{R: 0x66, G: 0x7E, B: 0xEA, A: 0xFF}
	gradientBottom = color.RGBA{R: 0x76, G: 0x4B, B: 0xA2, A: 0xFF}
	accentColor    = color.RGBA{R: 0x66, G: 0x7E, B: 0xEA, A: 0xFF}
	bodyColor      = color.RGBA{R: 0x33, G: 0x33, B: 0x33, A: 0xFF}
)

// sectionEmojis mark paragraphs that render as one-line section headers.
var sectionEmojis = []string{"🎲", "🧠", "💡", "⚠️", "📋", "🔮"}

// emphasisPrefixes mark body lines that render with the header face.
var emphasisPrefixes = []string{"1순위", "2순위"}

// Opts holds the card renderer configuration.
type Opts struct {
	// FontPath points at a TTF file covering Hangul. Empty or unloadable
	// paths degrade to the built-in bitmap face.
	FontPath string
	Width    int
	Height   int
}

// Option configures the card renderer.
type Option func(*Opts)

// WithFontPath sets the TTF font file used for all card text.
func WithFontPath(path string) Option {
	return func(o *Opts) { o.FontPath = path }
}

// WithSize overrides the card dimensions in pixels.
func WithSize(width, height int) Option {
	return func(o *Opts) {
		o.Width = width
		o.Height = height
	}
}

// CardRenderer produces share-card PNGs. Construct once and reuse; the
// parsed font faces are shared across renders.
type CardRenderer struct {
	width  int
	height int

	titleFace  font.Face
	headerFace font.Face
	bodyFace   font.Face
	footerFace font.Face
}

// NewCardRenderer builds a renderer. A missing or unparsable font is not an
// error; the renderer falls back to the built-in face so a card is always
// produced.
func NewCardRenderer(options ...Option) *CardRenderer {
	opts := Opts{Width: defaultWidth, Height: defaultHeight}
	for _, opt := range options {
		opt(&opts)
	}

	r := &CardRenderer{width: opts.Width, height: opts.Height}

	ttf, err := loadTTF(opts.FontPath)
	if err != nil {
		if opts.FontPath != "" {
			slog.Warn("share.NewCardRenderer: font load failed, using built-in face", "path", opts.FontPath, "error", err)
		}
		fallback := basicfont.Face7x13
		r.titleFace = fallback
		r.headerFace = fallback
		r.bodyFace = fallback
		r.footerFace = fallback
		return r
	}

	r.titleFace = newFace(ttf, titleSize)
	r.headerFace = newFace(ttf, headerSize)
	r.bodyFace = newFace(ttf, bodySize)
	r.footerFace = newFace(ttf, footerSize)
	slog.Debug("share.NewCardRenderer: font loaded", "path", opts.FontPath)
	return r
}

func loadTTF(path string) (*truetype.Font, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("no font path configured")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read font file: %w", err)
	}
	ttf, err := truetype.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse TTF: %w", err)
	}
	return ttf, nil
}

func newFace(ttf *truetype.Font, size float64) font.Face {
	return truetype.NewFace(ttf, &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	})
}

// Render produces the share card PNG: gradient background, rounded panel,
// title and target name, the body text laid out as headers and wrapped
// paragraphs, and the footer call-to-action.
func (r *CardRenderer) Render(title, targetName, body string) ([]byte, error) {
	w, h := float64(r.width), float64(r.height)
	dc := gg.NewContext(r.width, r.height)

	grad := gg.NewLinearGradient(0, 0, 0, h)
	grad.AddColorStop(0, gradientTop)
	grad.AddColorStop(1, gradientBottom)
	dc.SetFillStyle(grad)
	dc.DrawRectangle(0, 0, w, h)
	dc.Fill()

	panelX := float64(panelMargin)
	panelY := float64(panelMargin)
	panelW := w - 2*panelMargin
	panelH := h - 2*panelMargin
	dc.SetRGBA(1, 1, 1, 0.94)
	dc.DrawRoundedRectangle(panelX, panelY, panelW, panelH, panelRadius)
	dc.Fill()

	textX := panelX + panelPadding
	maxY := panelY + panelH - panelPadding - footerSize*3
	y := panelY + panelPadding + titleSize

	dc.SetFontFace(r.titleFace)
	dc.SetColor(accentColor)
	dc.DrawString(title, textX, y)
	y += titleSize * 0.9

	if strings.TrimSpace(targetName) != "" {
		dc.SetFontFace(r.headerFace)
		dc.SetColor(bodyColor)
		dc.DrawString(targetName, textX, y)
		y += headerSize * 1.4
	} else {
		y += titleSize * 0.4
	}

	for _, para := range splitParagraphs(stripMarkdown(body)) {
		if y > maxY {
			break
		}
		if isSectionHeader(para) {
			y += headerSize * 0.6
			dc.SetFontFace(r.headerFace)
			dc.SetColor(accentColor)
			dc.DrawString(para, textX, y)
			y += headerSize * 1.5
			continue
		}
		for _, line := range wrapRunes(para, wrapWidth) {
			if y > maxY {
				break
			}
			if isEmphasis(line) {
				dc.SetFontFace(r.headerFace)
				dc.SetColor(bodyColor)
				dc.DrawString(line, textX, y)
				y += headerSize * 1.5
				continue
			}
			dc.SetFontFace(r.bodyFace)
			dc.SetColor(bodyColor)
			dc.DrawString(line, textX, y)
			y += bodySize * 1.6
		}
		y += bodySize * 0.8
	}

	dc.SetFontFace(r.footerFace)
	dc.SetColor(gradientBottom)
	dc.DrawStringAnchored(footerText, w/2, panelY+panelH-panelPadding, 0.5, 0)

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode share card PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// stripMarkdown removes the emphasis and header tokens the model tends to
// emit, keeping the plain text.
func stripMarkdown(s string) string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.ReplaceAll(line, "**", "")
		line = strings.ReplaceAll(line, "__", "")
		trimmed := strings.TrimLeft(line, "# ")
		if strings.HasPrefix(strings.TrimSpace(line), "* ") {
			trimmed = strings.Replace(line, "* ", "", 1)
		}
		out = append(out, trimmed)
	}
	return strings.Join(out, "\n")
}

// splitParagraphs splits on blank lines, dropping empty segments.
func splitParagraphs(s string) []string {
	var paras []string
	for _, block := range strings.Split(s, "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		// Single newlines inside a block flow into one paragraph.
		paras = append(paras, strings.Join(strings.Fields(block), " "))
	}
	return paras
}

func isSectionHeader(para string) bool {
	for _, e := range sectionEmojis {
		if strings.HasPrefix(para, e) {
			return true
		}
	}
	return false
}

func isEmphasis(line string) bool {
	for _, p := range emphasisPrefixes {
		if strings.HasPrefix(line, p) {
			return true
		}
	}
	return false
}

// wrapRunes wraps text at a fixed rune width, preferring space boundaries
// and hard-breaking words longer than the width.
func wrapRunes(s string, width int) []string {
	var lines []string
	var current []rune
	for _, word := range strings.Fields(s) {
		wr := []rune(word)
		for len(wr) > width {
			if len(current) > 0 {
				lines = append(lines, string(current))
				current = nil
			}
			lines = append(lines, string(wr[:width]))
			wr = wr[width:]
		}
		if len(current) == 0 {
			current = wr
			continue
		}
		if len(current)+1+len(wr) > width {
			lines = append(lines, string(current))
			current = wr
			continue
		}
		current = append(current, ' ')
		current = append(current, wr...)
	}
	if len(current) > 0 {
		lines = append(lines, string(current))
	}
	return lines
}
