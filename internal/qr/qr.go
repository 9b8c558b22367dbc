// Package qr renders configuration documents as QR codes that WireGuard
// mobile apps can import.
package qr

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/skip2/go-qrcode"

	"piawg/internal/wgconf"
)

const DefaultPNGSize = 512

// Terminal writes doc to w as a QR code drawn with half-height block
// characters, two modules rows per text line, dark modules on a light
// background.
func Terminal(w io.Writer, doc string) error {
	code, err := encode(doc)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, render(code.Bitmap()))
	return err
}

// PNG returns doc encoded as a size x size PNG.
func PNG(doc string, size int) ([]byte, error) {
	code, err := encode(doc)
	if err != nil {
		return nil, err
	}
	if size <= 0 {
		size = DefaultPNGSize
	}
	data, err := code.PNG(size)
	if err != nil {
		return nil, fmt.Errorf("render QR png: %w", err)
	}
	return data, nil
}

// WritePNG stores the PNG rendering of doc at path with owner-only
// permissions; the image carries the private key.
func WritePNG(path, doc string, size int) error {
	data, err := PNG(doc, size)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write QR png: %w", err)
	}
	return nil
}

func encode(doc string) (*qrcode.QRCode, error) {
	if err := wgconf.Check(doc); err != nil {
		return nil, err
	}
	code, err := qrcode.New(doc, qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("encode QR: %w", err)
	}
	return code, nil
}

// render maps pairs of bitmap rows onto one line. true is a dark module.
func render(bitmap [][]bool) string {
	var b strings.Builder
	for y := 0; y < len(bitmap); y += 2 {
		for x := range bitmap[y] {
			top := bitmap[y][x]
			bottom := false
			if y+1 < len(bitmap) {
				bottom = bitmap[y+1][x]
			}
			switch {
			case top && bottom:
				b.WriteString(" ")
			case top:
				b.WriteString("▄")
			case bottom:
				b.WriteString("▀")
			default:
				b.WriteString("█")
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}
