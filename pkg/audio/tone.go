package audio

import (
	"math"
	"time"
)

const (
	// the ring tone mixes two sine waves of hiHz*pitch and loHz*pitch
	hiHz = 420.0
	loHz = 69.0

	RingPitch     = 2.0
	RingAmplitude = 0.05
	RingDuration  = 2 * time.Second
)

// Tone returns pcm of the ring tone with the given pitch, amplitude (0..1) and duration.
func Tone(f Format, pitch, amp float64, d time.Duration) []byte {
	frames := f.BytesInDuration(d) / f.FrameSize()
	s := make([]int16, 0, frames*f.Channels)

	for i := 0; i < frames; i++ {
		t := float64(i) / float64(f.Rate)
		v := amp * (math.Sin(2*math.Pi*hiHz*pitch*t) + math.Sin(2*math.Pi*loHz*pitch*t))
		x := clip(v * math.MaxInt16)
		for c := 0; c < f.Channels; c++ {
			s = append(s, x)
		}
	}

	return AppendSamples(make([]byte, 0, len(s)*bytesPerSample), s)
}

// RingTone returns the default ring tone.
func RingTone(f Format) []byte {
	return Tone(f, RingPitch, RingAmplitude, RingDuration)
}

// Chirp returns three short rising tones, played at start-up to show the device is ready.
func Chirp(f Format) []byte {
	var b []byte
	for _, pitch := range []float64{3, 4, 5} {
		b = append(b, Tone(f, pitch, 0.5, 100*time.Millisecond)...)
	}
	return b
}

func clip(v float64) int16 {
	switch {
	case v > math.MaxInt16:
		return math.MaxInt16
	case v < math.MinInt16:
		return math.MinInt16
	default:
		return int16(math.Round(v))
	}
}
