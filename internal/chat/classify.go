package chat

import (
	"context"
	"regexp"
	"strings"

	"github.com/victornm/mcqtutor/internal/backend"
)

const defaultTopic = "General Knowledge"

// Classification is the controller's view of one user input: plain chat or a
// quiz request with a topic.
type Classification struct {
	IsQuizRequest bool
	Topic         string
	// Reply carries the backend's chat reply when classification already
	// required a round-trip, so the controller does not call the backend
	// twice for the same input.
	Reply *backend.ChatReply
}

// Classifier decides whether a user input asks for a quiz. The two
// implementations are interchangeable and selected by configuration.
type Classifier interface {
	Classify(ctx context.Context, text string) (Classification, error)
}

var quizPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)generate.*mcqs?`),
	regexp.MustCompile(`(?i)create.*mcqs?`),
	regexp.MustCompile(`(?i)make.*mcqs?`),
	regexp.MustCompile(`(?i)multiple choice questions?`),
	regexp.MustCompile(`(?i)quiz`),
	regexp.MustCompile(`(?i)test me`),
}

var (
	topicPattern         = regexp.MustCompile(`(?i)(?:on|about|for|regarding)\s+(.+?)(?:\s+with|\s+having|\s+containing|\s*$)`)
	topicFallbackPattern = regexp.MustCompile(`(?i)(?:mcqs?|quiz|multiple choice questions?)\s+(?:on|about|for|regarding)?\s*(.+)`)
)

// PatternClassifier recognizes quiz requests with local pattern matching and
// never touches the network.
type PatternClassifier struct{}

func (PatternClassifier) Classify(_ context.Context, text string) (Classification, error) {
	for _, p := range quizPatterns {
		if p.MatchString(text) {
			return Classification{
				IsQuizRequest: true,
				Topic:         ExtractTopic(text),
			}, nil
		}
	}

	return Classification{}, nil
}

// ExtractTopic parses the quiz topic out of a request like "Generate 5 MCQs
// on JavaScript Promises". The phrase after on/about/for/regarding wins, cut
// at a trailing with/having/containing clause; failing that, the text after
// the quiz keyword; failing both, the default topic.
func ExtractTopic(text string) string {
	if m := topicPattern.FindStringSubmatch(text); m != nil {
		if topic := strings.TrimSpace(m[1]); topic != "" && !isFiller(topic) {
			return topic
		}
	}

	if m := topicFallbackPattern.FindStringSubmatch(text); m != nil {
		if topic := strings.TrimSpace(m[1]); topic != "" && !isFiller(topic) {
			return topic
		}
	}

	return defaultTopic
}

// Pronouns left over from phrasings like "quiz me" are not topics.
func isFiller(topic string) bool {
	switch strings.ToLower(topic) {
	case "me", "me please", "please", "us", "now":
		return true
	}
	return false
}

// BackendClassifier delegates classification to the backend: the chat reply
// itself signals whether a quiz is wanted and on which topic.
type BackendClassifier struct {
	Backend interface {
		SendMessage(ctx context.Context, text string) (*backend.ChatReply, error)
	}
}

func (c BackendClassifier) Classify(ctx context.Context, text string) (Classification, error) {
	reply, err := c.Backend.SendMessage(ctx, text)
	if err != nil {
		return Classification{}, err
	}

	cl := Classification{
		IsQuizRequest: reply.IsQuizRequest,
		Topic:         reply.QuizTopic,
		Reply:         reply,
	}
	if cl.IsQuizRequest && cl.Topic == "" {
		cl.Topic = defaultTopic
	}

	return cl, nil
}
