// Package chat answers questions from retrieved corpus context.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/fabfab/heraklion-chatbot/embeddings"
	"github.com/fabfab/heraklion-chatbot/index"
	"github.com/fabfab/heraklion-chatbot/llm"
)

const (
	defaultCompletionTimeout = 60 * time.Second
	maxSnippetChars          = 200
)

type Options struct {
	TopK              int
	Template          PromptTemplate
	CompletionTimeout time.Duration
	// Tokens, when set, is used to log the prompt size at debug level.
	Tokens *llm.TokenCounter
}

type Service struct {
	vectors  VectorStore
	embedder embeddings.Embedder
	llm      llm.Client
	logger   *zap.Logger
	validate *validator.Validate
	opts     Options
}

// question is the validated form of an incoming question.
type question struct {
	Text string `validate:"required"`
}

func NewService(vectors VectorStore, embedder embeddings.Embedder, llmClient llm.Client, logger *zap.Logger, opts Options) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.TopK <= 0 {
		opts.TopK = index.DefaultTopK
	}
	if opts.Template == "" {
		opts.Template = DefaultPromptTemplate
	}
	if opts.CompletionTimeout <= 0 {
		opts.CompletionTimeout = defaultCompletionTimeout
	}

	return &Service{
		vectors:  vectors,
		embedder: embedder,
		llm:      llmClient,
		logger:   logger,
		validate: validator.New(),
		opts:     opts,
	}
}

// Answer runs one question through embedding, retrieval and completion.
// A blank question yields ErrInvalidInput; every downstream failure is a
// *ProcessingError.
func (s *Service) Answer(ctx context.Context, q string) (Response, error) {
	if err := s.validate.Struct(question{Text: strings.TrimSpace(q)}); err != nil {
		return Response{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if s.embedder == nil {
		return Response{}, processingError(KindEmbedding, errors.New("embedder is not configured"))
	}
	if s.vectors == nil {
		return Response{}, processingError(KindRetrieval, errors.New("vector store is not configured"))
	}
	if s.llm == nil {
		return Response{}, processingError(KindCompletion, errors.New("llm client is not configured"))
	}

	vectors, err := s.embedder.Embed(ctx, []string{q})
	if err != nil {
		return Response{}, classify(KindEmbedding, fmt.Errorf("embed question: %w", err))
	}
	if len(vectors) == 0 {
		return Response{}, classify(KindEmbedding, fmt.Errorf("embedder returned no vectors"))
	}

	chunks, err := s.vectors.SimilarChunks(ctx, vectors[0], s.opts.TopK)
	if err != nil {
		kind := KindRetrieval
		if errors.Is(err, errIndexUnavailable) {
			kind = KindIndex
		}
		return Response{}, classify(kind, fmt.Errorf("vector search: %w", err))
	}
	if len(chunks) == 0 {
		s.logger.Warn("no context retrieved for question")
	}

	prompt := s.opts.Template.Render(buildContext(chunks), q)
	s.logPromptSize(prompt, len(chunks))

	completionCtx, cancel := context.WithTimeout(ctx, s.opts.CompletionTimeout)
	defer cancel()

	answer, err := s.llm.Generate(completionCtx, []llm.Message{{Role: llm.RoleUser, Content: prompt}})
	if err != nil {
		if errors.Is(completionCtx.Err(), context.DeadlineExceeded) {
			return Response{}, processingError(KindTimeout, fmt.Errorf("llm generate: %w", err))
		}
		return Response{}, classify(KindCompletion, fmt.Errorf("llm generate: %w", err))
	}

	return Response{
		Answer:  strings.TrimSpace(answer),
		Sources: toSources(chunks),
	}, nil
}

func (s *Service) logPromptSize(prompt string, chunks int) {
	if s.opts.Tokens == nil || !s.logger.Core().Enabled(zap.DebugLevel) {
		return
	}
	tokens, err := s.opts.Tokens.Count(prompt)
	if err != nil {
		s.logger.Debug("count prompt tokens", zap.Error(err))
		return
	}
	s.logger.Debug("prompt rendered",
		zap.Int("tokens", tokens),
		zap.Int("chars", utf8.RuneCountInString(prompt)),
		zap.Int("chunks", chunks),
	)
}

// classify reports deadline expiry as a timeout regardless of stage.
func classify(kind FailureKind, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		kind = KindTimeout
	}
	return processingError(kind, err)
}

func toSources(chunks []ChunkResult) []Source {
	if len(chunks) == 0 {
		return nil
	}
	sources := make([]Source, len(chunks))
	for i, chunk := range chunks {
		snippet := strings.TrimSpace(chunk.Content)
		if r := []rune(snippet); len(r) > maxSnippetChars {
			snippet = string(r[:maxSnippetChars]) + "..."
		}
		sources[i] = Source{
			ChunkID: chunk.ChunkID,
			Start:   chunk.Start,
			End:     chunk.End,
			Snippet: snippet,
			Score:   chunk.Score,
		}
	}
	return sources
}
