package interpret

import (
	"context"

	"github.com/dealhound-cloud/dealhound/internal/transport/openai"
)

// AIParser extracts structured terms from a free-text query.
// It is an external collaborator; both its failure modes (timeout,
// malformed payload) are tolerated by the interpreter.
type AIParser interface {
	Parse(ctx context.Context, text string) (openai.ParseResult, error)
}
