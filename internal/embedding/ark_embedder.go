package embedding

import (
	"context"

	arkext "github.com/cloudwego/eino-ext/components/embedding/ark"
	einoembedding "github.com/cloudwego/eino/components/embedding"
)

type ArkEmbedder struct {
	emb arkext.Embedder
}

// NewArkEmbedder builds an embedder backed by the Ark embedding API.
func NewArkEmbedder(apiKey, model, baseURL, region string) (*ArkEmbedder, error) {
	cfg := &arkext.EmbeddingConfig{
		APIKey: apiKey,
		Model:  model,
	}
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if region != "" {
		cfg.Region = region
	}
	emb, err := arkext.NewEmbedder(context.Background(), cfg)
	if err != nil {
		return nil, err
	}
	return &ArkEmbedder{emb: *emb}, nil
}

func (a *ArkEmbedder) Embed(ctx context.Context, inputs []string) ([][]float64, error) {
	return a.emb.EmbedStrings(ctx, inputs)
}

// Raw exposes the underlying eino embedder for eino-ext components that
// take the framework interface.
func (a *ArkEmbedder) Raw() einoembedding.Embedder {
	return &a.emb
}
