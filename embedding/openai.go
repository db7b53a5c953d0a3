package embedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"golang.org/x/time/rate"
)

// OpenAI embedding models.
const (
	ModelTextEmbedding3Small = "text-embedding-3-small"
	ModelTextEmbedding3Large = "text-embedding-3-large"
)

// openaiMaxBatch is the provider's per-request input limit.
const openaiMaxBatch = 2048

// OpenAIOptions configures the OpenAI backend.
type OpenAIOptions struct {
	// Model is the embedding model identifier.
	Model string

	// Dimension is the requested vector dimensionality.
	Dimension int

	// BaseURL overrides the API endpoint, for OpenAI-compatible providers.
	BaseURL string

	// HTTPClient is the client used for API requests.
	HTTPClient *http.Client

	// RequestsPerSecond throttles API calls. Zero disables throttling.
	RequestsPerSecond float64

	// Burst is the limiter burst size when throttling is enabled.
	Burst int
}

// DefaultOpenAIOptions contains the default options for the OpenAI backend.
var DefaultOpenAIOptions = OpenAIOptions{
	Model:     ModelTextEmbedding3Small,
	Dimension: 1536,
	Burst:     1,
}

// OpenAI is a Backend backed by the OpenAI embeddings API. It also works
// against any OpenAI-compatible endpoint via BaseURL.
type OpenAI struct {
	client  *openai.Client
	limiter *rate.Limiter
	opts    OpenAIOptions
}

var _ Backend = (*OpenAI)(nil)

// NewOpenAI creates an OpenAI embedding backend.
func NewOpenAI(apiKey string, optFns ...func(o *OpenAIOptions)) *OpenAI {
	opts := DefaultOpenAIOptions

	for _, fn := range optFns {
		fn(&opts)
	}

	clientOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if opts.HTTPClient != nil {
		clientOpts = append(clientOpts, option.WithHTTPClient(opts.HTTPClient))
	}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(opts.BaseURL))
	}

	client := openai.NewClient(clientOpts...)

	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), max(opts.Burst, 1))
	}

	return &OpenAI{
		client:  &client,
		limiter: limiter,
		opts:    opts,
	}
}

// Dimension returns the configured vector dimensionality.
func (o *OpenAI) Dimension() int {
	return o.opts.Dimension
}

// Model returns the configured model identifier.
func (o *OpenAI) Model() string {
	return o.opts.Model
}

// Embed returns the embedding for a single text.
func (o *OpenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := o.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}

	return vecs[0], nil
}

// EmbedBatch returns one embedding per input text, in input order. Batches
// larger than the provider limit are split across multiple API calls.
func (o *OpenAI) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	result := make([][]float32, len(texts))

	for i := 0; i < len(texts); i += openaiMaxBatch {
		end := min(i+openaiMaxBatch, len(texts))

		vecs, err := o.callAPI(ctx, texts[i:end])
		if err != nil {
			return nil, err
		}

		copy(result[i:], vecs)
	}

	return result, nil
}

func (o *OpenAI) callAPI(ctx context.Context, texts []string) ([][]float32, error) {
	if o.limiter != nil {
		if err := o.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	params := openai.EmbeddingNewParams{
		Model:          o.opts.Model,
		Input:          openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Dimensions:     openai.Int(int64(o.opts.Dimension)),
		EncodingFormat: openai.EmbeddingNewParamsEncodingFormatFloat,
	}

	resp, err := o.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, o.classify(err)
	}

	vecs := make([][]float32, len(texts))

	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= int64(len(texts)) {
			return nil, &UnavailableError{
				Backend: "openai",
				Kind:    FailureMalformed,
				Err:     fmt.Errorf("embedding index %d out of range for batch size %d", item.Index, len(texts)),
			}
		}

		vec := make([]float32, len(item.Embedding))
		for i, v := range item.Embedding {
			vec[i] = float32(v)
		}

		vecs[item.Index] = vec
	}

	for i, vec := range vecs {
		if vec == nil {
			return nil, &UnavailableError{
				Backend: "openai",
				Kind:    FailureMalformed,
				Err:     fmt.Errorf("missing embedding for input %d", i),
			}
		}
		if len(vec) != o.opts.Dimension {
			return nil, &UnavailableError{
				Backend: "openai",
				Kind:    FailureMalformed,
				Err:     fmt.Errorf("embedding dimension %d, expected %d", len(vec), o.opts.Dimension),
			}
		}
	}

	return vecs, nil
}

// classify maps provider errors onto failure kinds.
func (o *OpenAI) classify(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	kind := FailureNetwork

	var apierr *openai.Error
	if errors.As(err, &apierr) {
		switch apierr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			kind = FailureAuth
		case http.StatusTooManyRequests:
			kind = FailureRateLimited
		}
	}

	return &UnavailableError{Backend: "openai", Kind: kind, Err: err}
}
