// Package predict implements the PNG and TIFF predictors used by the PDF
// FlateDecode and LZWDecode stream filters' /DecodeParms /Predictor entry.
package predict

import (
	"errors"
	"fmt"
)

const maxColumns = 1 << 20

// Params describes the predictor configuration taken from a stream's
// /DecodeParms dictionary.
type Params struct {
	// Colors is the number of color components per pixel.
	Colors int

	// BitsPerComponent is the number of bits per color component: 1, 2, 4,
	// 8, or 16.
	BitsPerComponent int

	// Columns is the row width in pixels.
	Columns int

	// Predictor selects the algorithm: 1 (none), 2 (TIFF), or 10-15 (PNG
	// None/Sub/Up/Average/Paeth/Optimum).
	Predictor int
}

// Validate checks that p describes a usable predictor configuration.
func (p *Params) Validate() error {
	if p.Predictor == 1 {
		return nil
	}

	if p.Colors < 1 {
		return errors.New("predict: Colors must be at least 1")
	}
	if p.Predictor == 2 {
		if p.Colors > 60 {
			return errors.New("predict: Colors must be at most 60 for the TIFF predictor")
		}
	} else if p.Predictor >= 10 && p.Predictor <= 15 {
		if p.Colors > 256 {
			return errors.New("predict: Colors must be at most 256 for PNG predictors")
		}
	}

	switch p.BitsPerComponent {
	case 1, 2, 4, 8, 16:
	default:
		return fmt.Errorf("predict: BitsPerComponent must be 1, 2, 4, 8, or 16, got %d", p.BitsPerComponent)
	}

	bitsPerPixel := p.Colors * p.BitsPerComponent
	maxCols := maxColumns
	if limit := (1<<31 - 1) / bitsPerPixel; limit < maxCols {
		maxCols = limit
	}
	if p.Columns < 1 || p.Columns > maxCols {
		return errors.New("predict: invalid Columns value")
	}

	switch p.Predictor {
	case 1, 2, 10, 11, 12, 13, 14, 15:
	default:
		return fmt.Errorf("predict: Predictor must be 1, 2, or 10-15, got %d", p.Predictor)
	}

	return nil
}

func (p *Params) bitsPerPixel() int { return p.Colors * p.BitsPerComponent }
func (p *Params) bitsPerRow() int   { return p.bitsPerPixel() * p.Columns }
func (p *Params) bytesPerRow() int  { return (p.bitsPerRow() + 7) / 8 }
func (p *Params) bytesPerPixel() int {
	return (p.bitsPerPixel() + 7) / 8
}
