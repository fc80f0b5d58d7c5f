package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/and161185/smartnotes/internal/errs"
)

// SystemPrompt frames every study-assistant completion.
const SystemPrompt = "You are a helpful study assistant. Provide clear, concise, and educational responses."

// AppendSeparator precedes an assistant result appended to a note.
const AppendSeparator = "\n\n--- AI Assistant ---\n"

// Completer produces a chat completion for a system and user prompt.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// StudyAssistant defines the AI study operations.
type StudyAssistant interface {
	Summarize(ctx context.Context, noteContent string) (string, error)
	Explain(ctx context.Context, selectedText string) (string, error)
	Quiz(ctx context.Context, noteContent string) (string, error)
	Enhance(ctx context.Context, noteContent string) (string, error)
	StudyTips(ctx context.Context, noteContent, subject string) (string, error)
}

type StudyAssistantImpl struct {
	llm Completer
}

// NewStudyAssistant constructs StudyAssistant over a completion gateway.
func NewStudyAssistant(llm Completer) *StudyAssistantImpl {
	return &StudyAssistantImpl{llm: llm}
}

var (
	errNoContent = fmt.Errorf("%w: Note content is required", errs.ErrValidation)
	errNoText    = fmt.Errorf("%w: Text to explain is required", errs.ErrValidation)
)

// Summarize condenses notes for a student.
func (a *StudyAssistantImpl) Summarize(ctx context.Context, noteContent string) (string, error) {
	if blank(noteContent) {
		return "", errNoContent
	}
	return a.llm.Complete(ctx, SystemPrompt, "Summarize these study notes concisely for a student:\n\n"+noteContent)
}

// Explain restates a selected passage in simple terms.
func (a *StudyAssistantImpl) Explain(ctx context.Context, selectedText string) (string, error) {
	if blank(selectedText) {
		return "", errNoText
	}
	return a.llm.Complete(ctx, SystemPrompt, "Explain this concept in simple terms for a student:\n\n"+selectedText)
}

// Quiz generates five multiple-choice questions in a fixed, parseable layout.
func (a *StudyAssistantImpl) Quiz(ctx context.Context, noteContent string) (string, error) {
	if blank(noteContent) {
		return "", errNoContent
	}
	prompt := "Based on these study notes, generate 5 multiple-choice questions with answers:\n\n" +
		noteContent +
		"\n\nFormat each question as:\nQ: [Question]\nA) [Option A]\nB) [Option B]\nC) [Option C]\nD) [Option D]\nCorrect Answer: [Letter]"
	return a.llm.Complete(ctx, SystemPrompt, prompt)
}

// Enhance fixes grammar and expands key points.
func (a *StudyAssistantImpl) Enhance(ctx context.Context, noteContent string) (string, error) {
	if blank(noteContent) {
		return "", errNoContent
	}
	return a.llm.Complete(ctx, SystemPrompt, "Improve and enhance these study notes by fixing grammar, expanding key points, and making them more comprehensive:\n\n"+noteContent)
}

// StudyTips gives recommendations, mentioning the subject when known.
func (a *StudyAssistantImpl) StudyTips(ctx context.Context, noteContent, subject string) (string, error) {
	if blank(noteContent) {
		return "", errNoContent
	}
	about := ""
	if s := strings.TrimSpace(subject); s != "" {
		about = " about " + s
	}
	return a.llm.Complete(ctx, SystemPrompt, "Based on these study notes"+about+", provide personalized study tips and recommendations:\n\n"+noteContent)
}

// AppendResult adds an assistant result to the end of a note body.
func AppendResult(content, result string) string {
	return content + AppendSeparator + result
}

func blank(s string) bool { return strings.TrimSpace(s) == "" }
