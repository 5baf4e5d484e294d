// Package audio provides PCM decoding and conversion helpers for speech
// recognition engines.
//
// Engines consume audio in different shapes: local whisper models want 16kHz
// mono float32 samples, realtime websocket engines want little-endian PCM16
// frames. This package converts WAV input into either, handling channel
// mixdown and sample rate conversion along the way.
//
//	pcm, err := audio.DecodeWAVFile("meeting.wav")
//	samples := pcm.Mono().ResampleTo(16000).Float32()
package audio
