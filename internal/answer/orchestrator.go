// Package answer assembles retrieved course material, session history and the caller's
// code context into one generation request, then records the turn.
package answer

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/hyperjump/tutor/internal/errs"
	"github.com/hyperjump/tutor/internal/llm"
	"github.com/hyperjump/tutor/internal/metrics"
	"github.com/hyperjump/tutor/internal/models"
	"github.com/hyperjump/tutor/pkg/utils"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("github.com/hyperjump/tutor/internal/answer")

// SystemPrompt frames the model as a course teaching assistant.
const SystemPrompt = `You are a teaching assistant answering students' questions about the course.
You may combine general programming knowledge with the course material.
If the course material is relevant, cite it by source and page, e.g. "see lecture3.pdf, p.12".
If it is not, say that the answer is based on general knowledge and cites no course material.`

// Retriever returns the chunks most relevant to a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]models.RetrievedChunk, error)
}

// History is the per-session conversation memory.
type History interface {
	FormatHistory(id string) string
	Append(id, question, answer string)
}

// Orchestrator is safe for concurrent use.
type Orchestrator struct {
	retriever Retriever
	history   History
	generator llm.Generator
	logger    *zap.Logger // optional
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets a logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// New creates an Orchestrator.
func New(retriever Retriever, history History, generator llm.Generator, opts ...Option) *Orchestrator {
	o := &Orchestrator{retriever: retriever, history: history, generator: generator}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Ask answers req.Question. A missing session id gets a fresh one. Retrieval errors are
// returned unchanged; the turn is recorded only once the generator has answered.
func (o *Orchestrator) Ask(ctx context.Context, req models.AskRequest) (*models.AskResponse, error) {
	if err := req.Validate(); err != nil {
		metrics.Answered("invalid")
		return nil, errs.E(errs.InvalidInput, "ask", err)
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	ctx, span := tracer.Start(ctx, "ask")
	defer span.End()
	span.SetAttributes(attribute.String("tutor.session_id", req.SessionID))

	resp, err := o.ask(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.Answered("error")
		if o.logger != nil {
			o.logger.Warn("ask failed", zap.String("session", req.SessionID), zap.Error(err))
		}
		return nil, err
	}
	metrics.Answered("success")
	return resp, nil
}

func (o *Orchestrator) ask(ctx context.Context, req models.AskRequest) (*models.AskResponse, error) {
	chunks, err := o.retriever.Retrieve(ctx, req.Question, req.K)
	if err != nil {
		return nil, err
	}
	prompt := BuildPrompt(chunks, o.history.FormatHistory(req.SessionID), req.CodeContext, req.Question)
	answer, err := o.generator.Generate(ctx, SystemPrompt, prompt)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}
	o.history.Append(req.SessionID, req.Question, answer)

	if o.logger != nil {
		o.logger.Info("answered question",
			zap.String("session", req.SessionID),
			zap.String("question", utils.Truncate(req.Question, 80)),
			zap.Int("sources", len(chunks)))
	}
	return &models.AskResponse{Answer: answer, SessionID: req.SessionID, Sources: chunks}, nil
}

// BuildPrompt lays out course material, history, code context and the question as labelled
// sections. Each chunk is one "[source, p.N] content" paragraph.
func BuildPrompt(chunks []models.RetrievedChunk, history, codeContext, question string) string {
	var b strings.Builder
	b.WriteString("Course material:\n")
	if len(chunks) == 0 {
		b.WriteString("none\n")
	}
	for i, c := range chunks {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(c.Label())
		b.WriteString(" ")
		b.WriteString(c.Content)
		b.WriteString("\n")
	}
	if history == "" {
		history = "none"
	}
	b.WriteString("\nConversation so far:\n")
	b.WriteString(history)
	b.WriteString("\n\nCode:\n")
	b.WriteString(codeContext)
	b.WriteString("\n\nStudent question:\n")
	b.WriteString(question)
	b.WriteString("\n")
	return b.String()
}
