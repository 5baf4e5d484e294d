package audio

import (
	"encoding/binary"

	"github.com/zeozeozeo/gomplerate"

	"github.com/skillsenselab/asrkit/logger"
)

// Standard sample rates accepted by recognition backends.
const (
	SampleRate8kHz  = 8000
	SampleRate16kHz = 16000
)

// PCM holds decoded interleaved PCM16 audio.
type PCM struct {
	Samples    []int16
	SampleRate int
	Channels   int
}

// Duration returns the audio length in seconds.
func (p *PCM) Duration() float64 {
	if p.SampleRate <= 0 || p.Channels <= 0 {
		return 0
	}
	return float64(len(p.Samples)) / float64(p.SampleRate*p.Channels)
}

// Mono returns a single-channel copy, averaging channels when needed.
func (p *PCM) Mono() *PCM {
	if p.Channels <= 1 {
		return p
	}
	mono := make([]int16, len(p.Samples)/p.Channels)
	for i := 0; i < len(mono); i++ {
		var sum int32
		for ch := 0; ch < p.Channels; ch++ {
			sum += int32(p.Samples[i*p.Channels+ch])
		}
		mono[i] = int16(sum / int32(p.Channels))
	}
	return &PCM{Samples: mono, SampleRate: p.SampleRate, Channels: 1}
}

// ResampleTo converts the audio to the target sample rate. Multi-channel
// audio is mixed down to mono first. If the resampler cannot be constructed
// the input is returned unchanged.
func (p *PCM) ResampleTo(targetRate int) *PCM {
	mono := p.Mono()
	if mono.SampleRate == targetRate || targetRate <= 0 {
		return mono
	}

	resampler, err := gomplerate.NewResampler(1, mono.SampleRate, targetRate)
	if err != nil {
		logger.Warn("resampler creation failed, keeping original rate", logger.Fields(
			"from", mono.SampleRate,
			"to", targetRate,
			"error", err.Error(),
		))
		return mono
	}

	return &PCM{
		Samples:    resampler.ResampleInt16(mono.Samples),
		SampleRate: targetRate,
		Channels:   1,
	}
}

// Float32 returns the samples normalized to [-1, 1].
func (p *PCM) Float32() []float32 {
	result := make([]float32, len(p.Samples))
	for i, s := range p.Samples {
		result[i] = float32(s) / 32768.0
	}
	return result
}

// Bytes returns the samples as little-endian PCM16 bytes.
func (p *PCM) Bytes() []byte {
	return Int16ToBytes(p.Samples)
}

// Frames splits the audio into fixed-duration frames for streaming. The last
// frame may be shorter. frameMs must be positive; zero yields a single frame.
func (p *PCM) Frames(frameMs int) [][]int16 {
	if frameMs <= 0 || p.SampleRate <= 0 {
		return [][]int16{p.Samples}
	}
	frameLen := p.SampleRate * p.Channels * frameMs / 1000
	if frameLen <= 0 {
		return [][]int16{p.Samples}
	}

	frames := make([][]int16, 0, len(p.Samples)/frameLen+1)
	for start := 0; start < len(p.Samples); start += frameLen {
		end := start + frameLen
		if end > len(p.Samples) {
			end = len(p.Samples)
		}
		frames = append(frames, p.Samples[start:end])
	}
	return frames
}

// BytesToInt16 converts little-endian PCM16 bytes to samples. A trailing odd
// byte is discarded.
func BytesToInt16(buf []byte) []int16 {
	samples := make([]int16, len(buf)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(buf[i*2 : i*2+2]))
	}
	return samples
}

// Int16ToBytes converts samples to little-endian PCM16 bytes.
func Int16ToBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:i*2+2], uint16(s))
	}
	return buf
}

// Int16ToFloat32 converts PCM16 samples to float32 normalized to [-1, 1].
func Int16ToFloat32(samples []int16) []float32 {
	result := make([]float32, len(samples))
	for i, s := range samples {
		result[i] = float32(s) / 32768.0
	}
	return result
}
