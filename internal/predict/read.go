package predict

import "io"

// reader undoes a prediction filter on data read from it, used on
// decompressed Flate/LZW stream content in PDF.
type reader struct {
	r      io.ReadCloser
	params *Params

	prevRow      []byte
	prevValues   []uint32
	inputBuffer  []byte
	outputBuffer []byte
	outputPos    int
	outputLen    int
	needRowData  int
	eof          bool
}

// NewReader wraps r to undo the prediction filter described by p. For
// Predictor 1 (no prediction) it returns r unchanged.
func NewReader(r io.ReadCloser, p *Params) (io.ReadCloser, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if p.Predictor == 1 {
		return r, nil
	}

	rd := &reader{
		r:            r,
		params:       p,
		outputBuffer: make([]byte, p.bytesPerRow()*2),
	}

	if p.Predictor >= 10 && p.Predictor <= 15 {
		bufSize := p.bytesPerPixel() + p.bytesPerRow()
		rd.prevRow = make([]byte, bufSize)
		rd.inputBuffer = make([]byte, p.bytesPerRow()+1)
		rd.needRowData = p.bytesPerRow() + 1
	} else if p.Predictor == 2 {
		rd.prevValues = make([]uint32, p.Colors)
		rd.inputBuffer = make([]byte, p.bytesPerRow())
		rd.needRowData = p.bytesPerRow()
	}

	return rd, nil
}

func (r *reader) Close() error { return r.r.Close() }

func (r *reader) Read(p []byte) (n int, err error) {
	totalRead := 0

	for totalRead < len(p) {
		if r.outputPos < r.outputLen {
			available := r.outputLen - r.outputPos
			copyLen := len(p) - totalRead
			if available < copyLen {
				copyLen = available
			}
			copy(p[totalRead:], r.outputBuffer[r.outputPos:r.outputPos+copyLen])
			r.outputPos += copyLen
			totalRead += copyLen
			continue
		}

		if r.eof {
			break
		}

		bytesRead, readErr := io.ReadFull(r.r, r.inputBuffer[:r.needRowData])
		if readErr != nil {
			if readErr == io.EOF || readErr == io.ErrUnexpectedEOF {
				r.eof = true
				if bytesRead == 0 {
					break
				}
			} else {
				return totalRead, readErr
			}
		}

		var decodedRow []byte
		var decodeErr error
		switch r.params.Predictor {
		case 2:
			decodedRow, decodeErr = r.decodeTIFFRow(r.inputBuffer[:bytesRead])
		case 10, 11, 12, 13, 14, 15:
			decodedRow, decodeErr = r.decodePNGRow(r.inputBuffer[:bytesRead])
		}
		if decodeErr != nil {
			return totalRead, decodeErr
		}

		copy(r.outputBuffer, decodedRow)
		r.outputLen = len(decodedRow)
		r.outputPos = 0
	}

	if totalRead == 0 && r.eof {
		return 0, io.EOF
	}
	return totalRead, nil
}

func (r *reader) decodeTIFFRow(encodedData []byte) ([]byte, error) {
	result := make([]byte, len(encodedData))
	copy(result, encodedData)

	switch r.params.BitsPerComponent {
	case 1:
		r.decodeTIFF1Bit(result)
	case 2:
		r.decodeTIFF2Bit(result)
	case 4:
		r.decodeTIFF4Bit(result)
	case 8:
		r.decodeTIFF8Bit(result)
	case 16:
		r.decodeTIFF16Bit(result)
	}

	for i := range r.prevValues {
		r.prevValues[i] = 0
	}
	return result, nil
}

func (r *reader) decodeTIFF1Bit(data []byte) {
	componentsPerRow := r.params.Colors * r.params.Columns
	for byteIdx := range data {
		original := data[byteIdx]
		var result byte
		for fragIdx := 0; fragIdx < 8; fragIdx++ {
			componentIdx := byteIdx*8 + fragIdx
			if componentIdx >= componentsPerRow {
				break
			}
			shift := 7 - fragIdx
			encoded := (original >> shift) & 1
			colorIdx := componentIdx % r.params.Colors
			var current byte
			if componentIdx < r.params.Colors {
				current = encoded
			} else {
				current = encoded ^ byte(r.prevValues[colorIdx]&1)
			}
			result |= current << shift
			r.prevValues[colorIdx] = uint32(current)
		}
		data[byteIdx] = result
	}
}

func (r *reader) decodeTIFF2Bit(data []byte) {
	componentsPerRow := r.params.Colors * r.params.Columns
	for byteIdx := range data {
		original := data[byteIdx]
		var result byte
		for fragIdx := 0; fragIdx < 4; fragIdx++ {
			componentIdx := byteIdx*4 + fragIdx
			if componentIdx >= componentsPerRow {
				break
			}
			shift := 6 - fragIdx*2
			encoded := (original >> shift) & 0x03
			colorIdx := componentIdx % r.params.Colors
			var current byte
			if componentIdx < r.params.Colors {
				current = encoded
			} else {
				current = (encoded + byte(r.prevValues[colorIdx])) & 0x03
			}
			result |= current << shift
			r.prevValues[colorIdx] = uint32(current)
		}
		data[byteIdx] = result
	}
}

func (r *reader) decodeTIFF4Bit(data []byte) {
	componentsPerRow := r.params.Colors * r.params.Columns
	for byteIdx := range data {
		original := data[byteIdx]
		var result byte
		for fragIdx := 0; fragIdx < 2; fragIdx++ {
			componentIdx := byteIdx*2 + fragIdx
			if componentIdx >= componentsPerRow {
				break
			}
			shift := 4 - fragIdx*4
			encoded := (original >> shift) & 0x0F
			colorIdx := componentIdx % r.params.Colors
			var current byte
			if componentIdx < r.params.Colors {
				current = encoded
			} else {
				current = (encoded + byte(r.prevValues[colorIdx])) & 0x0F
			}
			result |= current << shift
			r.prevValues[colorIdx] = uint32(current)
		}
		data[byteIdx] = result
	}
}

func (r *reader) decodeTIFF8Bit(data []byte) {
	for i := 0; i < r.params.Colors && i < len(data); i++ {
		r.prevValues[i] = uint32(data[i])
	}
	for i := r.params.Colors; i < len(data); i++ {
		componentIdx := i % r.params.Colors
		original := byte(int(data[i]) + int(r.prevValues[componentIdx]))
		data[i] = original
		r.prevValues[componentIdx] = uint32(original)
	}
}

func (r *reader) decodeTIFF16Bit(data []byte) {
	for i := 0; i < r.params.Colors && i*2+1 < len(data); i++ {
		r.prevValues[i] = uint32(data[i*2])<<8 | uint32(data[i*2+1])
	}
	for i := r.params.Colors * 2; i < len(data); i += 2 {
		componentIdx := (i / 2) % r.params.Colors
		diff := uint32(data[i])<<8 | uint32(data[i+1])
		current := diff + r.prevValues[componentIdx]
		data[i] = byte(current >> 8)
		data[i+1] = byte(current & 0xFF)
		r.prevValues[componentIdx] = current
	}
}

func (r *reader) decodePNGRow(encodedData []byte) ([]byte, error) {
	if len(encodedData) == 0 {
		return nil, io.EOF
	}
	algorithm := encodedData[0]
	rowData := encodedData[1:]

	result := make([]byte, len(rowData))
	bpp := r.params.bytesPerPixel()

	for i := range rowData {
		var predictor byte
		switch algorithm {
		case 0:
			predictor = 0
		case 1:
			if i >= bpp {
				predictor = result[i-bpp]
			}
		case 2:
			if len(r.prevRow) > bpp+i {
				predictor = r.prevRow[bpp+i]
			}
		case 3:
			var left, up byte
			if i >= bpp {
				left = result[i-bpp]
			}
			if len(r.prevRow) > bpp+i {
				up = r.prevRow[bpp+i]
			}
			predictor = byte((int(left) + int(up)) / 2)
		case 4:
			var left, up, upperLeft byte
			if i >= bpp {
				left = result[i-bpp]
			}
			if len(r.prevRow) > bpp+i {
				up = r.prevRow[bpp+i]
			}
			if i >= bpp && len(r.prevRow) > i {
				upperLeft = r.prevRow[i]
			}
			predictor = paethPredictor(left, up, upperLeft)
		}
		result[i] = byte(int(rowData[i]) + int(predictor))
	}

	if len(r.prevRow) >= bpp+len(result) {
		copy(r.prevRow[bpp:], result)
	}
	return result, nil
}
