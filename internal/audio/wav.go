package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

const (
	wavHeaderSize = 44

	formatPCM        = 0x0001
	formatIEEEFloat  = 0x0003
	formatExtensible = 0xFFFE
)

// wavInfo is the decoded "fmt " chunk plus the location of the sample data.
type wavInfo struct {
	format      uint16
	channels    int
	sampleRate  int
	sampleWidth int
	data        []byte
}

// IsWAV reports whether b starts with a RIFF/WAVE header.
func IsWAV(b []byte) bool {
	return len(b) >= 12 && string(b[0:4]) == "RIFF" && string(b[8:12]) == "WAVE"
}

// parseWAV walks the RIFF chunks of a WAV blob. Oversized or streaming
// (0xFFFFFFFF) data chunk sizes are clamped to what is actually present.
func parseWAV(b []byte) (*wavInfo, error) {
	if !IsWAV(b) {
		return nil, fmt.Errorf("not a RIFF/WAVE container")
	}

	var info wavInfo
	haveFmt := false
	pos := 12
	for pos+8 <= len(b) {
		id := string(b[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(b[pos+4 : pos+8]))
		body := pos + 8
		if size < 0 || body+size > len(b) {
			size = len(b) - body
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, fmt.Errorf("fmt chunk too short (%d bytes)", size)
			}
			chunk := b[body : body+size]
			info.format = binary.LittleEndian.Uint16(chunk[0:2])
			info.channels = int(binary.LittleEndian.Uint16(chunk[2:4]))
			info.sampleRate = int(binary.LittleEndian.Uint32(chunk[4:8]))
			info.sampleWidth = int(binary.LittleEndian.Uint16(chunk[14:16])) / 8
			if info.format == formatExtensible {
				if size < 40 {
					return nil, fmt.Errorf("extensible fmt chunk too short (%d bytes)", size)
				}
				// First two bytes of the SubFormat GUID carry the real format tag.
				info.format = binary.LittleEndian.Uint16(chunk[24:26])
			}
			haveFmt = true
		case "data":
			if !haveFmt {
				return nil, fmt.Errorf("data chunk before fmt chunk")
			}
			info.data = b[body : body+size]
			return &info, nil
		}

		// Chunks are word aligned.
		pos = body + size + size%2
	}

	if !haveFmt {
		return nil, fmt.Errorf("missing fmt chunk")
	}
	return nil, fmt.Errorf("missing data chunk")
}

// EncodeWAV wraps little-endian PCM in a canonical 44-byte WAV header.
func EncodeWAV(pcm []byte, sampleRate, channels, sampleWidth int) []byte {
	var buf bytes.Buffer
	buf.Grow(wavHeaderSize + len(pcm))

	blockAlign := channels * sampleWidth
	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(formatPCM))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(channels))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*blockAlign))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(sampleWidth*8))
	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)

	return buf.Bytes()
}
