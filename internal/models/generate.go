package models

import (
	"fmt"
	"strings"
)

// FileSummary is one source file of a project scan sent by the IDE plugin.
type FileSummary struct {
	File     string   `json:"file"`
	Classes  []string `json:"classes,omitempty"`
	Methods  []string `json:"methods,omitempty"`
	Comments []string `json:"comments,omitempty"`
}

// DocsRequest asks for Markdown project documentation from a project scan.
type DocsRequest struct {
	Root      string        `json:"root"`
	FileCount int           `json:"file_count"`
	Files     []FileSummary `json:"files"`
}

// Validate requires at least one scanned file and fills FileCount when it is missing.
func (r *DocsRequest) Validate() error {
	if len(r.Files) == 0 {
		return fmt.Errorf("project scan has no files")
	}
	if r.FileCount < len(r.Files) {
		r.FileCount = len(r.Files)
	}
	if strings.TrimSpace(r.Root) == "" {
		r.Root = "unknown project"
	}
	return nil
}

// DocsResponse carries generated Markdown.
type DocsResponse struct {
	Markdown string `json:"markdown"`
}

// TestRequest asks for a unit test of the given code. Language and Framework default to
// Java and JUnit 5.
type TestRequest struct {
	Requirement string `json:"requirement"`
	ContextCode string `json:"context_code"`
	ClassName   string `json:"class_name,omitempty"`
	MethodName  string `json:"method_name,omitempty"`
	Language    string `json:"language,omitempty"`
	Framework   string `json:"framework,omitempty"`
}

// Validate requires a requirement and code, and applies the language defaults.
func (r *TestRequest) Validate() error {
	r.Requirement = strings.TrimSpace(r.Requirement)
	if r.Requirement == "" || strings.TrimSpace(r.ContextCode) == "" {
		return fmt.Errorf("requirement and context_code cannot be empty")
	}
	if r.Language == "" {
		r.Language = "Java"
	}
	if r.Framework == "" {
		r.Framework = "JUnit 5"
	}
	return nil
}

// TestResponse carries generated test source.
type TestResponse struct {
	TestCode string `json:"test_code"`
}

// CommitMessageRequest asks for a Conventional Commits message describing a git diff.
type CommitMessageRequest struct {
	Diff string `json:"diff"`
}

// CommitMessageResponse carries the generated message.
type CommitMessageResponse struct {
	Message string `json:"message"`
}
