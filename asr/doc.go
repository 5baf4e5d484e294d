// Package asr defines the core speech recognition abstraction: capability-
// tagged engines, a process-wide engine registry, and the recognition
// façade that dispatches requests by capability.
//
// Engines declare what input modes they support (local file, remote URL,
// streamed PCM) and implement the matching interface variant (FileEngine,
// URLEngine, StreamEngine). The Recognizer picks the invocation mode from
// the request's source and the engine's capabilities:
//
//	reg := asr.NewRegistry()
//	reg.Register("whisper", asr.Registration{Factory: whispercpp.Factory(), Capabilities: asr.CapFile})
//
//	rec := asr.NewRecognizer(reg)
//	transcript, err := rec.Recognize(ctx, asr.Request{
//	    Source: asr.FileSource("meeting.wav"),
//	    Engine: "whisper",
//	})
//
// Adding an engine means adding a variant behind the registry, not branching
// call sites.
package asr
