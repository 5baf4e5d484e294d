package audio

import (
	"fmt"
	"io"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// DecodeWAV decodes a WAV stream into PCM16 samples.
func DecodeWAV(r io.ReadSeeker) (*PCM, error) {
	dec := wav.NewDecoder(r)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode WAV: %w", err)
	}
	if buf.Format == nil {
		return nil, fmt.Errorf("decode WAV: missing format chunk")
	}

	depth := buf.SourceBitDepth
	if depth == 0 {
		depth = 16
	}
	samples := make([]int16, len(buf.Data))
	switch {
	case depth == 8:
		// 8-bit WAV is unsigned.
		for i, s := range buf.Data {
			samples[i] = int16((s - 128) << 8)
		}
	case depth > 16:
		shift := uint(depth - 16)
		for i, s := range buf.Data {
			samples[i] = int16(s >> shift)
		}
	default:
		for i, s := range buf.Data {
			samples[i] = int16(s)
		}
	}
	return &PCM{
		Samples:    samples,
		SampleRate: buf.Format.SampleRate,
		Channels:   buf.Format.NumChannels,
	}, nil
}

// DecodeWAVFile decodes a WAV file into PCM16 samples.
func DecodeWAVFile(path string) (*PCM, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open audio file: %w", err)
	}
	defer f.Close()
	return DecodeWAV(f)
}

// EncodeWAVFile writes PCM16 samples to a WAV file.
func EncodeWAVFile(path string, pcm *PCM) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create audio file: %w", err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, pcm.SampleRate, 16, pcm.Channels, 1)
	data := make([]int, len(pcm.Samples))
	for i, s := range pcm.Samples {
		data[i] = int(s)
	}
	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: pcm.Channels,
			SampleRate:  pcm.SampleRate,
		},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("write WAV data: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finalize WAV: %w", err)
	}
	return nil
}
