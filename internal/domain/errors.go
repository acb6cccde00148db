package domain

import "errors"

// Error kinds surfaced by the recommendation pipeline. Handlers translate
// these into user-facing messages with errors.Is; wrapped detail stays in
// the operator log.
var (
	// ErrInvalidImage indicates the uploaded payload does not decode as an image.
	ErrInvalidImage = errors.New("uploaded file is not a valid image")

	// ErrMalformedResponse indicates the completion service reply was not valid JSON.
	ErrMalformedResponse = errors.New("malformed completion response")

	// ErrMissingOptions indicates the completion reply parsed but lacks one or
	// more of the three required option keys.
	ErrMissingOptions = errors.New("completion response missing required options")

	// ErrUpstream indicates a transport or API failure from the completion,
	// embedding, or vector index service.
	ErrUpstream = errors.New("upstream service failure")

	// ErrIndexNotReady indicates the vector index did not become ready before
	// the readiness deadline expired.
	ErrIndexNotReady = errors.New("vector index not ready")
)
