// Package oracle defines the generative-oracle boundary: given a prompt,
// an oracle returns one candidate artifact plus its token cost. The engine
// treats every implementation as an external, possibly-unreliable
// collaborator.
package oracle

import (
	"context"

	"github.com/clinsight/takforge/errors"
)

// Sentinel errors for the oracle failure taxonomy. Both are transient from
// the engine's point of view: they consume one attempt and feed the next.
var (
	// ErrUnavailable marks network or service failure.
	ErrUnavailable = errors.New("oracle unavailable")
	// ErrMalformed marks a response the adapter could not parse.
	ErrMalformed = errors.New("oracle returned malformed response")
)

// Request carries one generation prompt.
type Request struct {
	System string // standing instructions, identical across attempts
	Prompt string // template + definition + feedback for this attempt
}

// Response carries one candidate artifact and its cost measurement.
type Response struct {
	Artifact         string
	TokenCost        int    // total tokens billed for this call
	PromptTokens     int
	CompletionTokens int
	Model            string // model that produced the artifact, for usage records
}

// Oracle produces candidate artifacts from prompts.
type Oracle interface {
	Generate(ctx context.Context, req Request) (*Response, error)
}
