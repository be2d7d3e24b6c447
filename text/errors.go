package text

import "errors"

// Sentinel errors for text package.
var (
	// ErrEmptyFontData is returned when font data is empty.
	ErrEmptyFontData = errors.New("text: empty font data")

	// ErrInvalidSize is returned for non-positive font sizes.
	ErrInvalidSize = errors.New("text: font size must be positive")

	// ErrNoViewport is returned by Draw before SetViewport.
	ErrNoViewport = errors.New("text: viewport not set")

	// ErrClosed is returned after Destroy.
	ErrClosed = errors.New("text: renderer destroyed")
)
