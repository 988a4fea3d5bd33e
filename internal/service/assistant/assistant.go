// Package assistant answers chat prompts with canned, keyword-driven replies.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Fallenproud/create.xyzdashboard/internal/domain"
	"github.com/Fallenproud/create.xyzdashboard/pkg/clock"
)

// DefaultTypingDelay is how long the assistant "types" before replying.
const DefaultTypingDelay = 1500 * time.Millisecond

// BuildPath is where build requests without a project are sent.
const BuildPath = "/build/new"

// ErrEmptyPrompt is returned for blank input.
var ErrEmptyPrompt = errors.New("message is required")

// Assistant produces replies after a simulated typing delay.
type Assistant struct {
	clock clock.Clock
	delay time.Duration
	newID func() string
}

// New returns an Assistant. A negative delay selects DefaultTypingDelay.
func New(clk clock.Clock, delay time.Duration) *Assistant {
	if clk == nil {
		clk = clock.Real()
	}
	if delay < 0 {
		delay = DefaultTypingDelay
	}
	return &Assistant{clock: clk, delay: delay, newID: uuid.NewString}
}

// Greeting opens a conversation, optionally about a named project.
func (a *Assistant) Greeting(projectName string) domain.ChatMessage {
	content := "Hi there! I'm your AI assistant. How can I help you build your project today?"
	if projectName != "" {
		content = fmt.Sprintf("Hi there! I'm your AI assistant for the %q project. How can I help you today?", projectName)
	}
	return a.message(content, "")
}

// Reply answers input after the typing delay.
func (a *Assistant) Reply(ctx context.Context, projectName, input string) (domain.ChatMessage, error) {
	if strings.TrimSpace(input) == "" {
		return domain.ChatMessage{}, ErrEmptyPrompt
	}
	if err := a.clock.Sleep(ctx, a.delay); err != nil {
		return domain.ChatMessage{}, err
	}
	content, navigateTo := Respond(projectName, input)
	return a.message(content, navigateTo), nil
}

// Respond picks the canned answer for input. navigateTo is set when the
// caller should move to another page.
func Respond(projectName, input string) (content, navigateTo string) {
	text := strings.ToLower(input)
	has := func(words ...string) bool {
		for _, w := range words {
			if strings.Contains(text, w) {
				return true
			}
		}
		return false
	}

	switch {
	case projectName == "" && has("build", "create", "new project"):
		return "I'll help you build a new project. Let's go to the build page to get started.", BuildPath
	case projectName == "":
		return "I can help you with that. Would you like to start building a new project or work with an existing one?", ""
	case has("file", "code"):
		return "I can help you with your files. Let me generate some code for you based on your requirements.", ""
	case has("deploy", "publish"):
		return "To deploy your project, you'll need to configure your deployment settings. Would you like me to help you set that up?", ""
	default:
		return fmt.Sprintf("I can help you with your %q project. What specific aspect would you like assistance with?", projectName), ""
	}
}

func (a *Assistant) message(content, navigateTo string) domain.ChatMessage {
	return domain.ChatMessage{
		ID:         a.newID(),
		Content:    content,
		Sender:     domain.SenderAssistant,
		Timestamp:  a.clock.Now().UTC(),
		NavigateTo: navigateTo,
	}
}
