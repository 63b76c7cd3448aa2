package flow

import (
	"context"

	"github.com/mindscan-ai/mindscan/internal/genai"
)

// gatewayGenerator adapts the genai gateway to the flow's generator
// interfaces.
type gatewayGenerator struct {
	client *genai.Client
}

// NewGatewayGenerator wraps the model gateway for use by the flow.
func NewGatewayGenerator(c *genai.Client) StreamingGenerator {
	return &gatewayGenerator{client: c}
}

// Generate produces the full response text via the gateway.
func (g *gatewayGenerator) Generate(ctx context.Context, prompt, image string) (string, error) {
	return g.client.Generate(ctx, prompt, image)
}

// GenerateStream opens a streaming generation call via the gateway.
func (g *gatewayGenerator) GenerateStream(ctx context.Context, prompt, image string) (ChunkStream, error) {
	stream, err := g.client.GenerateStream(ctx, prompt, image)
	if err != nil {
		return nil, err
	}
	return stream, nil
}
