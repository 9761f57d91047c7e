package answer

import (
	"context"
	"fmt"
	"strings"

	"github.com/hyperjump/tutor/internal/errs"
	"github.com/hyperjump/tutor/internal/llm"
	"github.com/hyperjump/tutor/internal/metrics"
	"github.com/hyperjump/tutor/internal/models"
	"github.com/hyperjump/tutor/pkg/utils"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// Sampling for the assistant tasks. Tests and commit messages want stable output.
var (
	DocsSampling   = llm.Sampling{Temperature: 0.6, MaxTokens: 1024}
	TestSampling   = llm.Sampling{Temperature: 0.3, MaxTokens: 2048}
	CommitSampling = llm.Sampling{Temperature: 0.3, MaxTokens: 512}
)

const (
	// FallbackCommitMessage is returned for an empty diff without calling the model.
	FallbackCommitMessage = "chore: update files"

	// maxDiffRunes bounds the diff placed in a commit prompt.
	maxDiffRunes = 24000

	docsFileLimit    = 10
	docsCommentLimit = 3

	kindDocs   = "docs"
	kindTest   = "test"
	kindCommit = "commit_message"
)

const docsSystemPrompt = `You are a software architect writing project documentation in Markdown.
Write a project overview, the module structure and a short design summary, then describe each
class and its main methods. Do not use bold text.`

const testSystemPrompt = `You are a developer who writes focused, high quality unit tests.
Output only test source code, with no explanation and no Markdown fences.`

const commitSystemPrompt = `You write git commit messages following Conventional Commits:
<type>(<scope>): <subject>, where type is one of feat, fix, docs, style, refactor, perf, test,
build, ci, chore or revert, scope is optional and the subject is at most 50 characters.
Describe only the main change. Output only the message.`

// Assistant generates project documentation, unit tests and commit messages for the IDE
// plugin. Each task may use its own generator so sampling can differ per task.
type Assistant struct {
	docs    llm.Generator
	tests   llm.Generator
	commits llm.Generator
	logger  *zap.Logger // optional
}

// AssistantOption configures an Assistant.
type AssistantOption func(*Assistant)

// WithAssistantLogger sets a logger.
func WithAssistantLogger(l *zap.Logger) AssistantOption {
	return func(a *Assistant) { a.logger = l }
}

// WithTestGenerator uses g for unit test generation.
func WithTestGenerator(g llm.Generator) AssistantOption {
	return func(a *Assistant) { a.tests = g }
}

// WithCommitGenerator uses g for commit messages.
func WithCommitGenerator(g llm.Generator) AssistantOption {
	return func(a *Assistant) { a.commits = g }
}

// NewAssistant creates an Assistant that uses generator for every task unless overridden.
func NewAssistant(generator llm.Generator, opts ...AssistantOption) *Assistant {
	a := &Assistant{docs: generator, tests: generator, commits: generator}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// GenerateDocs writes Markdown documentation from a project scan.
func (a *Assistant) GenerateDocs(ctx context.Context, req models.DocsRequest) (*models.DocsResponse, error) {
	if err := req.Validate(); err != nil {
		metrics.Generated(kindDocs, "invalid")
		return nil, errs.E(errs.InvalidInput, "generate.docs", err)
	}
	out, err := a.generate(ctx, kindDocs, a.docs, docsSystemPrompt, BuildDocsPrompt(req))
	if err != nil {
		return nil, err
	}
	return &models.DocsResponse{Markdown: out}, nil
}

// GenerateTest writes a unit test for the code in req.
func (a *Assistant) GenerateTest(ctx context.Context, req models.TestRequest) (*models.TestResponse, error) {
	if err := req.Validate(); err != nil {
		metrics.Generated(kindTest, "invalid")
		return nil, errs.E(errs.InvalidInput, "generate.test", err)
	}
	out, err := a.generate(ctx, kindTest, a.tests, testSystemPrompt, BuildTestPrompt(req))
	if err != nil {
		return nil, err
	}
	return &models.TestResponse{TestCode: stripFence(out)}, nil
}

// CommitMessage describes a git diff. A blank diff gets FallbackCommitMessage.
func (a *Assistant) CommitMessage(ctx context.Context, req models.CommitMessageRequest) (*models.CommitMessageResponse, error) {
	if strings.TrimSpace(req.Diff) == "" {
		metrics.Generated(kindCommit, "fallback")
		return &models.CommitMessageResponse{Message: FallbackCommitMessage}, nil
	}
	out, err := a.generate(ctx, kindCommit, a.commits, commitSystemPrompt, BuildCommitPrompt(req.Diff))
	if err != nil {
		return nil, err
	}
	return &models.CommitMessageResponse{Message: strings.TrimSpace(stripFence(out))}, nil
}

func (a *Assistant) generate(ctx context.Context, kind string, g llm.Generator, system, prompt string) (string, error) {
	ctx, span := tracer.Start(ctx, "generate."+kind)
	defer span.End()
	span.SetAttributes(attribute.Int("tutor.prompt_bytes", len(prompt)))

	out, err := g.Generate(ctx, system, prompt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.Generated(kind, "error")
		if a.logger != nil {
			a.logger.Warn("generation failed", zap.String("kind", kind), zap.Error(err))
		}
		return "", fmt.Errorf("generate %s: %w", kind, err)
	}
	metrics.Generated(kind, "success")
	if a.logger != nil {
		a.logger.Info("generated", zap.String("kind", kind), zap.Int("bytes", len(out)))
	}
	return out, nil
}

// BuildDocsPrompt summarizes the first files of a scan: classes, methods and a few comments.
func BuildDocsPrompt(req models.DocsRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Project: %s\nFiles scanned: %d\n", req.Root, req.FileCount)
	files := req.Files
	if len(files) > docsFileLimit {
		files = files[:docsFileLimit]
	}
	for _, f := range files {
		fmt.Fprintf(&b, "\nFile: %s\n", f.File)
		fmt.Fprintf(&b, "Classes: %s\n", joinOrNone(f.Classes))
		fmt.Fprintf(&b, "Methods: %s\n", joinOrNone(f.Methods))
		comments := f.Comments
		if len(comments) > docsCommentLimit {
			comments = comments[:docsCommentLimit]
		}
		if len(comments) > 0 {
			b.WriteString("Comments:\n- ")
			b.WriteString(strings.Join(comments, "\n- "))
			b.WriteString("\n")
		}
	}
	if len(req.Files) > len(files) {
		fmt.Fprintf(&b, "\n%d more files omitted.\n", len(req.Files)-len(files))
	}
	b.WriteString("\nExpected layout:\n# Project overview\n## Module structure\n### Classes\n")
	return b.String()
}

// BuildTestPrompt states the requirement, the target and the code under test.
func BuildTestPrompt(req models.TestRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write a %s test in %s.\n", req.Framework, req.Language)
	if req.ClassName != "" {
		fmt.Fprintf(&b, "Class under test: %s\nName the test class %sTest.\n", req.ClassName, req.ClassName)
	}
	if req.MethodName != "" {
		fmt.Fprintf(&b, "Method under test: %s\n", req.MethodName)
	}
	b.WriteString("\nWhat to test:\n")
	b.WriteString(req.Requirement)
	b.WriteString("\n\nSource code:\n")
	b.WriteString(req.ContextCode)
	b.WriteString("\n\nInclude imports, descriptive test names, assertions, edge cases and error cases.\n")
	return b.String()
}

// BuildCommitPrompt wraps a diff, truncated to a bounded size.
func BuildCommitPrompt(diff string) string {
	return "Git diff:\n" + utils.Truncate(strings.TrimSpace(diff), maxDiffRunes) + "\n"
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}

// stripFence removes one Markdown code fence wrapping the whole text.
func stripFence(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") || !strings.HasSuffix(t, "```") || len(t) < 6 {
		return s
	}
	t = strings.TrimSuffix(t, "```")
	if nl := strings.IndexByte(t, '\n'); nl >= 0 {
		t = t[nl+1:]
	} else {
		return s
	}
	return strings.TrimSpace(t)
}
