package audio

import (
	"bytes"
	"encoding/binary"
	"math"
)

const wavHeaderSize = 44

// WAVSize returns the encoded size of n mono 16-bit samples.
func WAVSize(n int) int {
	return wavHeaderSize + 2*n
}

// EncodeWAV writes samples as a mono 16-bit PCM RIFF/WAVE file.
func EncodeWAV(samples []float32, sampleRate int) []byte {
	dataLen := uint32(2 * len(samples))
	buf := bytes.NewBuffer(make([]byte, 0, WAVSize(len(samples))))

	buf.WriteString("RIFF")
	_ = binary.Write(buf, binary.LittleEndian, 36+dataLen)
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	_ = binary.Write(buf, binary.LittleEndian, uint32(16))           // chunk size
	_ = binary.Write(buf, binary.LittleEndian, uint16(1))            // PCM
	_ = binary.Write(buf, binary.LittleEndian, uint16(1))            // mono
	_ = binary.Write(buf, binary.LittleEndian, uint32(sampleRate))   // sample rate
	_ = binary.Write(buf, binary.LittleEndian, uint32(sampleRate*2)) // byte rate
	_ = binary.Write(buf, binary.LittleEndian, uint16(2))            // block align
	_ = binary.Write(buf, binary.LittleEndian, uint16(16))           // bits per sample

	buf.WriteString("data")
	_ = binary.Write(buf, binary.LittleEndian, dataLen)

	pcm := make([]byte, 2)
	for _, s := range samples {
		binary.LittleEndian.PutUint16(pcm, uint16(toInt16(s)))
		buf.Write(pcm)
	}
	return buf.Bytes()
}

func toInt16(s float32) int16 {
	v := math.Round(float64(s) * math.MaxInt16)
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}
