package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/and161185/smartnotes/internal/errs"
)

// AI operations exposed by the server.
const (
	OpSummarize = "summarize"
	OpExplain   = "explain"
	OpQuiz      = "quiz"
	OpEnhance   = "enhance"
	OpStudyTips = "study-tips"
)

var aiResultKey = map[string]string{
	OpSummarize: "summary",
	OpExplain:   "explanation",
	OpQuiz:      "quiz",
	OpEnhance:   "enhancedNotes",
	OpStudyTips: "studyTips",
}

// Ops lists the assistant operations in menu order.
func Ops() []string {
	return []string{OpSummarize, OpExplain, OpQuiz, OpEnhance, OpStudyTips}
}

// Assist runs one assistant operation. text is the note content, or the selected passage for
// OpExplain; subject is only used by OpStudyTips.
func (c *Client) Assist(ctx context.Context, op, text, subject string) (string, error) {
	key, ok := aiResultKey[op]
	if !ok {
		return "", fmt.Errorf("%w: unknown assistant operation %q", errs.ErrValidation, op)
	}
	body := map[string]string{"noteContent": text}
	switch op {
	case OpExplain:
		body = map[string]string{"selectedText": text}
	case OpStudyTips:
		body["subject"] = subject
	}
	var out map[string]string
	if err := c.do(ctx, http.MethodPost, "/api/ai/"+op, true, body, &out, errs.ErrGateway); err != nil {
		return "", err
	}
	res, ok := out[key]
	if !ok {
		return "", fmt.Errorf("%w: response without %q", errs.ErrGateway, key)
	}
	return res, nil
}
