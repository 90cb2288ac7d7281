package telemetry

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/victornm/mcqtutor/internal/domain"
	"github.com/victornm/mcqtutor/internal/event"
)

var (
	messagesAppended = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mcqtutor_messages_appended_total",
		Help: "Messages appended to chat sessions, by role.",
	}, []string{"role"})

	quizzesGenerated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mcqtutor_quizzes_generated_total",
		Help: "Quizzes generated and attached to assistant messages.",
	})

	quizzesCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mcqtutor_quizzes_completed_total",
		Help: "Quiz completion notifications, by outcome.",
	}, []string{"outcome"})
)

// ObserveEvents wires the metrics as event-bus subscribers.
func ObserveEvents(eb *event.Bus) {
	eb.Subscribe(domain.EventNameMessageAppended, func(_ context.Context, e event.Event) error {
		m := e.(domain.EventMessageAppended)
		messagesAppended.WithLabelValues(string(m.Message.Role)).Inc()
		return nil
	})

	eb.Subscribe(domain.EventNameQuizGenerated, func(_ context.Context, _ event.Event) error {
		quizzesGenerated.Inc()
		return nil
	})

	eb.Subscribe(domain.EventNameQuizCompleted, func(_ context.Context, e event.Event) error {
		outcome := "evaluated"
		if e.(domain.EventQuizCompleted).Skipped {
			outcome = "skipped"
		}
		quizzesCompleted.WithLabelValues(outcome).Inc()
		return nil
	})
}
