package predict

import "io"

// writer applies a prediction filter to data written to it, used to prepare
// content for the Flate/LZW compression filters in PDF.
type writer struct {
	w      io.WriteCloser
	params *Params

	prevRow    []byte
	prevValues []uint16
	tempBuffer []byte
	tempLen    int
}

// NewWriter wraps w to apply the prediction filter described by p. For
// Predictor 1 (no prediction) it returns w unchanged.
func NewWriter(w io.WriteCloser, p *Params) (io.WriteCloser, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if p.Predictor == 1 {
		return w, nil
	}

	wr := &writer{
		w:          w,
		params:     p,
		tempBuffer: make([]byte, p.bytesPerRow()*2),
	}

	if p.Predictor >= 10 && p.Predictor <= 15 {
		bufSize := p.bytesPerPixel() + p.bytesPerRow()
		wr.prevRow = make([]byte, bufSize)
	} else if p.Predictor == 2 {
		wr.prevValues = make([]uint16, p.Colors)
	}

	return wr, nil
}

func (w *writer) Write(data []byte) (n int, err error) {
	if len(data) == 0 {
		return 0, nil
	}

	totalWritten := 0
	pos := 0
	rowSize := w.params.bytesPerRow()

	for pos < len(data) {
		available := len(data) - pos
		needed := rowSize - w.tempLen
		copyLen := available
		if needed < copyLen {
			copyLen = needed
		}

		copy(w.tempBuffer[w.tempLen:], data[pos:pos+copyLen])
		w.tempLen += copyLen
		pos += copyLen
		totalWritten += copyLen

		if w.tempLen == rowSize {
			if err := w.processRow(w.tempBuffer[:w.tempLen]); err != nil {
				return totalWritten, err
			}
			w.tempLen = 0
		}
	}

	return totalWritten, nil
}

func (w *writer) processRow(rowData []byte) error {
	var encodedRow []byte
	var err error

	switch w.params.Predictor {
	case 2:
		encodedRow, err = w.applyTIFFPredictor(rowData)
	case 10:
		encodedRow, err = w.applyPNGPredictor(rowData, 0)
	case 11:
		encodedRow, err = w.applyPNGPredictor(rowData, 1)
	case 12:
		encodedRow, err = w.applyPNGPredictor(rowData, 2)
	case 13:
		encodedRow, err = w.applyPNGPredictor(rowData, 3)
	case 14:
		encodedRow, err = w.applyPNGPredictor(rowData, 4)
	case 15:
		encodedRow, err = w.applyPNGOptimumPredictor(rowData)
	default:
		return nil
	}
	if err != nil {
		return err
	}

	_, err = w.w.Write(encodedRow)
	return err
}

func (w *writer) applyTIFFPredictor(rowData []byte) ([]byte, error) {
	result := make([]byte, len(rowData))
	copy(result, rowData)

	switch w.params.BitsPerComponent {
	case 1:
		w.applyTIFF1Bit(result)
	case 2:
		w.applyTIFF2Bit(result)
	case 4:
		w.applyTIFF4Bit(result)
	case 8:
		w.applyTIFF8Bit(result)
	case 16:
		w.applyTIFF16Bit(result)
	}
	return result, nil
}

func (w *writer) applyTIFF1Bit(data []byte) {
	componentsPerRow := w.params.Colors * w.params.Columns
	for byteIdx, original := range data {
		var result byte
		for fragIdx := 0; fragIdx < 8; fragIdx++ {
			componentIdx := byteIdx*8 + fragIdx
			if componentIdx >= componentsPerRow {
				break
			}
			shift := 7 - fragIdx
			current := (original >> shift) & 1
			colorIdx := componentIdx % w.params.Colors
			var predicted byte
			if componentIdx < w.params.Colors {
				predicted = current
			} else {
				predicted = current ^ byte(w.prevValues[colorIdx]&1)
			}
			result |= predicted << shift
			w.prevValues[colorIdx] = uint16(current)
		}
		data[byteIdx] = result
	}
}

func (w *writer) applyTIFF2Bit(data []byte) {
	componentsPerRow := w.params.Colors * w.params.Columns
	for byteIdx, original := range data {
		var result byte
		for fragIdx := 0; fragIdx < 4; fragIdx++ {
			componentIdx := byteIdx*4 + fragIdx
			if componentIdx >= componentsPerRow {
				break
			}
			shift := 6 - fragIdx*2
			current := (original >> shift) & 0x03
			colorIdx := componentIdx % w.params.Colors
			var predicted byte
			if componentIdx < w.params.Colors {
				predicted = current
			} else {
				predicted = (current - byte(w.prevValues[colorIdx])) & 0x03
			}
			result |= predicted << shift
			w.prevValues[colorIdx] = uint16(current)
		}
		data[byteIdx] = result
	}
}

func (w *writer) applyTIFF4Bit(data []byte) {
	componentsPerRow := w.params.Colors * w.params.Columns
	for byteIdx, original := range data {
		var result byte
		for fragIdx := 0; fragIdx < 2; fragIdx++ {
			componentIdx := byteIdx*2 + fragIdx
			if componentIdx >= componentsPerRow {
				break
			}
			shift := 4 - fragIdx*4
			current := (original >> shift) & 0x0F
			colorIdx := componentIdx % w.params.Colors
			var predicted byte
			if componentIdx < w.params.Colors {
				predicted = current
			} else {
				predicted = (current - byte(w.prevValues[colorIdx])) & 0x0F
			}
			result |= predicted << shift
			w.prevValues[colorIdx] = uint16(current)
		}
		data[byteIdx] = result
	}
}

func (w *writer) applyTIFF8Bit(data []byte) {
	for componentIdx, current := range data {
		colorIdx := componentIdx % w.params.Colors
		if componentIdx >= w.params.Colors {
			data[componentIdx] = current - byte(w.prevValues[colorIdx])
		}
		w.prevValues[colorIdx] = uint16(current)
	}
}

func (w *writer) applyTIFF16Bit(data []byte) {
	for byteIdx := 0; byteIdx+1 < len(data); byteIdx += 2 {
		current := uint16(data[byteIdx])<<8 | uint16(data[byteIdx+1])
		componentIdx := byteIdx / 2
		colorIdx := componentIdx % w.params.Colors
		if componentIdx >= w.params.Colors {
			predicted := current - w.prevValues[colorIdx]
			data[byteIdx] = byte(predicted >> 8)
			data[byteIdx+1] = byte(predicted)
		}
		w.prevValues[colorIdx] = current
	}
}

func (w *writer) applyPNGPredictor(rowData []byte, algorithm byte) ([]byte, error) {
	result := make([]byte, 1+len(rowData))
	result[0] = algorithm

	bpp := w.params.bytesPerPixel()
	for i := range rowData {
		var predictor byte
		switch algorithm {
		case 0:
			predictor = 0
		case 1:
			if i >= bpp {
				predictor = rowData[i-bpp]
			}
		case 2:
			if len(w.prevRow) > bpp+i {
				predictor = w.prevRow[bpp+i]
			}
		case 3:
			var left, up byte
			if i >= bpp {
				left = rowData[i-bpp]
			}
			if len(w.prevRow) > bpp+i {
				up = w.prevRow[bpp+i]
			}
			predictor = byte((int(left) + int(up)) / 2)
		case 4:
			var left, up, upperLeft byte
			if i >= bpp {
				left = rowData[i-bpp]
			}
			if len(w.prevRow) > bpp+i {
				up = w.prevRow[bpp+i]
			}
			if i >= bpp && len(w.prevRow) > i {
				upperLeft = w.prevRow[i]
			}
			predictor = paethPredictor(left, up, upperLeft)
		}
		result[1+i] = byte(int(rowData[i]) - int(predictor))
	}

	if len(w.prevRow) >= bpp+len(rowData) {
		copy(w.prevRow[bpp:], rowData)
	}
	return result, nil
}

// applyPNGOptimumPredictor picks the Sub filter; a full per-row cost
// comparison across all five PNG filter types is not implemented, since
// nothing in this package needs optimum compression, only correct,
// reversible encoding.
func (w *writer) applyPNGOptimumPredictor(rowData []byte) ([]byte, error) {
	return w.applyPNGPredictor(rowData, 1)
}

func paethPredictor(a, b, c byte) byte {
	p := int(a) + int(b) - int(c)
	pa := absInt(p - int(a))
	pb := absInt(p - int(b))
	pc := absInt(p - int(c))
	if pa <= pb && pa <= pc {
		return a
	}
	if pb <= pc {
		return b
	}
	return c
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func (w *writer) Close() error {
	if w.tempLen > 0 {
		padding := make([]byte, w.params.bytesPerRow()-w.tempLen)
		copy(w.tempBuffer[w.tempLen:], padding)
		if err := w.processRow(w.tempBuffer[:w.params.bytesPerRow()]); err != nil {
			return err
		}
	}
	return w.w.Close()
}
