package encoder

import (
	"bytes"

	"github.com/AlexxIT/go2rtc/pkg/h265"
)

// NALTypes lists the HEVC NAL unit types of an Annex B buffer in order.
func NALTypes(data []byte) []uint8 {
	var types []uint8
	for _, nal := range splitAnnexB(data) {
		if len(nal) < 2 {
			continue
		}
		types = append(types, (nal[0]>>1)&0x3F)
	}
	return types
}

// IsIRAP reports whether t is a random access picture type the decoder can
// start from (IDR or CRA).
func IsIRAP(t uint8) bool {
	switch t {
	case h265.NALUTypeIFrame, h265.NALUTypeIFrame2, h265.NALUTypeIFrame3:
		return true
	}
	return false
}

// IsParameterSet reports whether t is a VPS, SPS or PPS.
func IsParameterSet(t uint8) bool {
	switch t {
	case h265.NALUTypeVPS, h265.NALUTypeSPS, h265.NALUTypePPS:
		return true
	}
	return false
}

var startCode = []byte{0, 0, 1}

// splitAnnexB returns the NAL payloads between start codes. Both three and
// four byte start codes are accepted.
func splitAnnexB(data []byte) [][]byte {
	var nals [][]byte

	i := bytes.Index(data, startCode)
	if i < 0 {
		return nil
	}
	data = data[i+3:]

	for len(data) > 0 {
		next := bytes.Index(data, startCode)
		if next < 0 {
			nals = append(nals, data)
			break
		}
		end := next
		if end > 0 && data[end-1] == 0 {
			end--
		}
		nals = append(nals, data[:end])
		data = data[next+3:]
	}
	return nals
}
