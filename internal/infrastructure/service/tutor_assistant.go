package service

import (
	"context"

	domaintutor "github.com/rianlab/rianhub/internal/domain/tutor"
	"github.com/rianlab/rianhub/internal/infrastructure/external/tutor"
)

// TutorAssistant adapts the Anthropic client to the chat command's
// Assistant port.
type TutorAssistant struct {
	client *tutor.Client
}

// NewTutorAssistant creates the adapter.
func NewTutorAssistant(client *tutor.Client) *TutorAssistant {
	return &TutorAssistant{client: client}
}

// Answer forwards the question with its context to the model.
func (a *TutorAssistant) Answer(
	ctx context.Context,
	profile domaintutor.Profile,
	window []domaintutor.Message,
	question string,
) (content string, degraded bool, err error) {
	result, err := a.client.Answer(ctx, tutor.AnswerRequest{
		Profile:  profile,
		Window:   window,
		Question: question,
	})
	if err != nil {
		return "", false, err
	}
	return result.Content, result.Degraded, nil
}
