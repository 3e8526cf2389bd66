// Package tts provides text-to-speech functionality.
package tts

import "context"

// Provider is the interface for text-to-speech services.
type Provider interface {
	// Name returns the provider identifier.
	Name() string

	// Synthesize converts text to audio.
	Synthesize(ctx context.Context, text string, opts SynthesizeOptions) (*Synthesis, error)
}

// SynthesizeOptions configures synthesis.
type SynthesizeOptions struct {
	Voice           string  // Voice identifier (ElevenLabs voice ID)
	Stability       float64 // 0-1, zero means provider default
	SimilarityBoost float64 // 0-1, zero means provider default
	Format          string  // MIME type requested from the provider
}

// Synthesis is the result of synthesis.
type Synthesis struct {
	Audio  []byte // Audio data
	Format string // MIME type of Audio
}
