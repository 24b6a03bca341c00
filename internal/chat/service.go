package chat

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/martingsewell/e-nor/internal/config"
	"github.com/martingsewell/e-nor/internal/extension"
	"github.com/martingsewell/e-nor/internal/store"
)

// Reply is the outcome of processing one piece of voice or typed input.
type Reply struct {
	Text        string `json:"text"`
	Matched     bool   `json:"matched"`
	ExtensionID string `json:"extension_id,omitempty"`
	Action      string `json:"action,omitempty"`
}

// Service routes input text: extension triggers first, then extension-request
// phrasing, then free conversation with the language model.
type Service struct {
	Matcher    *extension.Matcher
	Dispatcher *extension.Dispatcher
	LLM        Completer
	Config     *config.Manager
	Store      *store.Store
}

// fallbackReply is what the robot says when an action or the model fails.
// Silence and crashes are both worse than a canned apology.
const fallbackReply = "Oops, something went wrong. Let's try that again!"

// requestPhrases are the openings that turn chat input into an extension
// request for the build pipeline.
var requestPhrases = []string{
	"can you learn",
	"can you make",
	"can you add",
	"i wish you could",
}

// Process handles one input. A matched voice trigger is dispatched to its
// extension; a dispatch failure yields the generic fallback reply rather
// than silence. Unmatched input falls through to conversation.
func (s *Service) Process(ctx context.Context, text string) Reply {
	text = strings.TrimSpace(text)
	if text == "" {
		return Reply{Text: "I didn't catch that. Can you say it again?"}
	}

	if match, ok := s.Matcher.Match(text); ok {
		result := s.Dispatcher.Dispatch(ctx, match.ExtensionID, match.Action, map[string]any{
			"trigger": match.Phrase,
			"text":    text,
		})

		reply := Reply{
			Matched:     true,
			ExtensionID: match.ExtensionID,
			Action:      match.Action,
		}
		if !result.Success {
			log.Printf("chat: dispatch %s/%s failed: %s", match.ExtensionID, match.Action, result.Error)
			reply.Text = fallbackReply
			return reply
		}
		reply.Text = result.Message
		if reply.Text == "" {
			reply.Text = "Done!"
		}
		return reply
	}

	if phrase, ok := extractRequest(text); ok {
		return s.recordRequest(phrase)
	}

	return s.converse(ctx, text)
}

// extractRequest detects extension-request phrasing and returns the wish.
func extractRequest(text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, opening := range requestPhrases {
		if strings.Contains(lower, opening) {
			return strings.TrimSpace(text), true
		}
	}
	return "", false
}

// recordRequest stores the wish for the build pipeline and acknowledges it.
func (s *Service) recordRequest(phrase string) Reply {
	if s.Store == nil {
		return Reply{Text: "That sounds fun! I can't learn new tricks just yet though."}
	}

	if _, err := s.Store.Requests().Create(phrase); err != nil {
		log.Printf("chat: failed to record extension request: %v", err)
		return Reply{Text: fallbackReply}
	}

	return Reply{Text: "Ooh, great idea! I've written that down so I can learn it soon."}
}

// converse sends unmatched input to the language model with the robot's
// persona and memories as context.
func (s *Service) converse(ctx context.Context, text string) Reply {
	if s.LLM == nil {
		return Reply{Text: "I'm not connected to my brain right now, but I'm still happy to see you!"}
	}

	reply, err := s.LLM.Complete(ctx, text, s.persona())
	if err != nil {
		log.Printf("chat: language model error: %v", err)
		return Reply{Text: fallbackReply}
	}
	return Reply{Text: reply}
}

// persona builds the system context: who the robot is, who it is talking to,
// and what it remembers.
func (s *Service) persona() string {
	robot, child := "E-NOR", "friend"
	if s.Config != nil {
		robot = s.Config.RobotName()
		child = s.Config.ChildName()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, a friendly companion robot talking with %s, a child. ", robot, child)
	b.WriteString("Keep replies short (1-2 sentences), warm and suitable for speech.")

	if s.Store != nil {
		if facts, err := s.Store.Memories().Facts(); err == nil && len(facts) > 0 {
			b.WriteString("\n\nThings you remember:\n")
			for _, fact := range facts {
				b.WriteString("- ")
				b.WriteString(fact)
				b.WriteString("\n")
			}
		}
	}

	return b.String()
}
