package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	genai "github.com/google/generative-ai-go/genai"

	"islamic-qa-platform/internal/logger"
)

// GeminiEmbedder produces multilingual embeddings via the Google Generative
// AI API. The client is created once at process start and shared read-only;
// per-call state lives on the stack.
type GeminiEmbedder struct {
	client      *genai.Client
	model       string
	dimension   int
	breaker     *gobreaker.CircuitBreaker
	rateLimiter *rate.Limiter
	slots       chan struct{}
	queueWait   time.Duration
}

// NewGeminiEmbedder connects to the Generative AI API and prepares the
// concurrency guards: a circuit breaker around the remote call, an RPM rate
// limiter, and a bounded worker pool that is the backpressure point for all
// embedding traffic.
func NewGeminiEmbedder(apiKey, model string, dimension, maxConcurrent int, queueWait time.Duration) (*GeminiEmbedder, error) {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "GeminiEmbeddings",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	if maxConcurrent < 1 {
		maxConcurrent = 1
	}

	return &GeminiEmbedder{
		client:      client,
		model:       model,
		dimension:   dimension,
		breaker:     breaker,
		rateLimiter: rate.NewLimiter(rate.Limit(10), 10),
		slots:       make(chan struct{}, maxConcurrent),
		queueWait:   queueWait,
	}, nil
}

// Embed returns the L2-normalized embedding vector for text. Callers queueing
// beyond pool capacity block up to the configured wait and then receive
// ErrModelUnavailable rather than spawning unbounded model invocations.
func (g *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return g.embed(ctx, text, true)
}

// embed acquires a worker-pool slot and calls the model. Interactive callers
// (timed) give up after queueWait; bulk re-embed work holds its place in the
// queue for as long as its context allows.
func (g *GeminiEmbedder) embed(ctx context.Context, text string, timed bool) ([]float32, error) {
	if timed {
		select {
		case g.slots <- struct{}{}:
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(g.queueWait):
			return nil, fmt.Errorf("embedding pool saturated: %w", ErrModelUnavailable)
		}
	} else {
		select {
		case g.slots <- struct{}{}:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	defer func() { <-g.slots }()

	if err := g.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	result, err := g.breaker.Execute(func() (interface{}, error) {
		model := g.client.EmbeddingModel(g.model)
		resp, err := model.EmbedContent(ctx, genai.Text(text))
		if err != nil {
			return nil, err
		}
		if resp.Embedding == nil || len(resp.Embedding.Values) == 0 {
			return nil, fmt.Errorf("no embedding returned")
		}
		return resp.Embedding.Values, nil
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, fmt.Errorf("circuit breaker open: %w", ErrModelUnavailable)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("embed content: %v: %w", err, ErrModelUnavailable)
	}

	return l2Normalize(result.([]float32)), nil
}

// EmbedBatch embeds texts in parallel, bounded by the shared worker pool.
// Submission is capped at pool capacity and queued work waits without the
// interactive timeout, so a large batch drains steadily instead of having
// its tail give up while the head is still running.
func (g *GeminiEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(cap(g.slots))
	for i, text := range texts {
		eg.Go(func() error {
			vec, err := g.embed(ctx, text, false)
			if err != nil {
				return err
			}
			vectors[i] = vec
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

func (g *GeminiEmbedder) Dimension() int { return g.dimension }

// Version identifies the model/config producing vectors; documents embedded
// under a different version are stale until re-embedded.
func (g *GeminiEmbedder) Version() string { return "google/" + g.model }

// Close releases the underlying API client.
func (g *GeminiEmbedder) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}
