// Package audio holds the audio collaborators of the intercom:
// the pcm sample codec, the ring tone and the players and capture sources
// which pipe raw pcm through external commands like aplay and arecord.
package audio

import (
	"encoding/binary"
	"time"
)

// bytesPerSample of signed 16 bit little endian samples (S16_LE).
const bytesPerSample = 2

// Format describes raw interleaved S16_LE audio.
type Format struct {
	Rate     int
	Channels int
}

// DefaultFormat is 48 kHz mono.
var DefaultFormat = Format{Rate: 48000, Channels: 1}

// FrameSize returns the number of bytes of one sample of every channel.
func (f Format) FrameSize() int {
	return f.Channels * bytesPerSample
}

// BytesInDuration returns the number of bytes of d, aligned to whole frames.
func (f Format) BytesInDuration(d time.Duration) int {
	frames := int(time.Duration(f.Rate) * d / time.Second)
	return frames * f.FrameSize()
}

// Duration returns the playing time of n bytes.
func (f Format) Duration(n int) time.Duration {
	if f.Rate == 0 || f.Channels == 0 {
		return 0
	}
	return time.Duration(n/f.FrameSize()) * time.Second / time.Duration(f.Rate)
}

// Samples decodes little endian samples from b.
// A trailing odd byte is ignored.
func Samples(b []byte) []int16 {
	s := make([]int16, len(b)/bytesPerSample)
	for i := range s {
		s[i] = int16(binary.LittleEndian.Uint16(b[i*bytesPerSample:]))
	}
	return s
}

// AppendSamples appends the little endian encoding of s to dst.
func AppendSamples(dst []byte, s []int16) []byte {
	var b [bytesPerSample]byte
	for _, x := range s {
		binary.LittleEndian.PutUint16(b[:], uint16(x))
		dst = append(dst, b[:]...)
	}
	return dst
}
