// Package ai talks to the Gemini generative-language API for the two
// assistive features: pulling line items out of pasted free text and drafting
// a thank-you note for a document. Both features are strictly optional; every
// failure is recoverable and the caller falls back to manual entry.
package ai

import (
	"context"

	"shoppro/backend/internal/domain"
)

// Extractor is implemented by the Gemini client and by Disabled.
type Extractor interface {
	// ExtractItems parses arbitrary order text into structured rows.
	// Malformed model output yields an error, never a panic or partial rows.
	ExtractItems(ctx context.Context, text string) ([]domain.ExtractedItem, error)
	// GenerateNote writes a short client-facing closing note for the
	// document described by req.
	GenerateNote(ctx context.Context, req domain.NoteRequest) (string, error)
	// Enabled reports whether a real model is behind this instance.
	Enabled() bool
}

// Disabled is the no-key fallback: both features report unavailability and
// the rest of the application behaves as if the assistant never existed.
type Disabled struct{}

func (Disabled) ExtractItems(context.Context, string) ([]domain.ExtractedItem, error) {
	return nil, ErrUnavailable
}

func (Disabled) GenerateNote(context.Context, domain.NoteRequest) (string, error) {
	return "", ErrUnavailable
}

func (Disabled) Enabled() bool { return false }
