package testutil

import (
	"context"
	"hash/fnv"

	"github.com/firebase/genkit/go/ai"
)

// FakeEmbedder produces deterministic vectors derived from the input text, so
// integration tests get stable similarity ordering without a live model.
// Identical texts embed identically; different texts almost surely differ.
type FakeEmbedder struct {
	Dimension int
}

// Embed implements the stores' Embedder interface.
func (f *FakeEmbedder) Embed(_ context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	dim := f.Dimension
	if dim <= 0 {
		dim = 768
	}

	resp := &ai.EmbedResponse{}
	for _, doc := range req.Input {
		var text string
		for _, part := range doc.Content {
			text += part.Text
		}

		vec := make([]float32, dim)
		h := fnv.New64a()
		for i := range vec {
			h.Write([]byte(text))
			h.Write([]byte{byte(i)})
			// Map the hash into [-1, 1).
			vec[i] = float32(int64(h.Sum64()%2000))/1000 - 1
		}
		resp.Embeddings = append(resp.Embeddings, &ai.Embedding{Embedding: vec})
	}
	return resp, nil
}
