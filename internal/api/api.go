package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/victornm/mcqtutor/internal/chat"
	"github.com/victornm/mcqtutor/internal/domain"
	"github.com/victornm/mcqtutor/internal/errors"
	"github.com/victornm/mcqtutor/internal/quiz"
	"github.com/victornm/mcqtutor/internal/session"
)

type Config struct {
	Router *gin.Engine
	Chat   *chat.Service
	Store  *session.Store
	Cards  *quiz.Registry
}

// API is the HTTP/JSON surface the presentation layer consumes. It holds no
// state of its own; it enforces the loading-flag convention and maps domain
// errors to HTTP statuses.
type API struct {
	chat  *chat.Service
	store *session.Store
	cards *quiz.Registry
}

func New(c Config) *API {
	a := &API{
		chat:  c.Chat,
		store: c.Store,
		cards: c.Cards,
	}

	r := c.Router
	r.GET("/api/health", a.health)

	r.GET("/api/sessions", a.listSessions)
	r.POST("/api/sessions", a.newSession)
	r.GET("/api/sessions/:id", a.getSession)
	r.POST("/api/sessions/:id/select", a.selectSession)
	r.POST("/api/sessions/:id/messages", a.sendMessage)

	r.GET("/api/quizzes/:id", a.getQuiz)
	r.POST("/api/quizzes/:id/answers", a.selectOption)
	r.POST("/api/quizzes/:id/submit", a.submitQuiz)
	r.POST("/api/quizzes/:id/retry", a.retryQuiz)
	r.POST("/api/quizzes/:id/skip", a.skipQuiz)
	r.POST("/api/quizzes/:id/minimize", a.toggleMinimized)

	return a
}

func (a *API) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (a *API) listSessions(c *gin.Context) {
	sessions := a.store.List()
	out := make([]sessionView, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, toSessionView(s))
	}

	c.JSON(http.StatusOK, gin.H{
		"sessions":          out,
		"active_session_id": a.store.ActiveID(),
	})
}

func (a *API) newSession(c *gin.Context) {
	var req struct {
		Title string `json:"title"`
	}
	_ = c.ShouldBindJSON(&req)

	s, err := a.store.NewSession(c.Request.Context(), req.Title)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toSessionView(s))
}

func (a *API) getSession(c *gin.Context) {
	s, err := a.store.Get(c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, toSessionView(s))
}

func (a *API) selectSession(c *gin.Context) {
	if err := a.store.Select(c.Param("id")); err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"active_session_id": a.store.ActiveID()})
}

func (a *API) sendMessage(c *gin.Context) {
	sessionID := c.Param("id")

	// The loading flag blocks overlapping submissions for a session; the
	// controller only tracks it.
	if a.chat.Loading(sessionID) {
		abortWithError(c, errors.New(errors.CodeAlreadyExists,
			errors.WithMessagef("a message is already in flight for session %s", sessionID)))
		return
	}

	var req struct {
		Message string `json:"message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, errors.Validation("invalid JSON body"))
		return
	}

	msg, err := a.chat.HandleSendMessage(c.Request.Context(), sessionID, req.Message)
	if err != nil {
		abortWithError(c, err)
		return
	}

	if msg.MessageID == "" {
		// Blank input is a no-op.
		c.Status(http.StatusNoContent)
		return
	}

	c.JSON(http.StatusOK, toMessageView(msg))
}

func (a *API) getQuiz(c *gin.Context) {
	card, err := a.cards.Get(c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, toCardView(card))
}

func (a *API) selectOption(c *gin.Context) {
	card, err := a.cards.Get(c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}

	var req struct {
		QuestionID string `json:"question_id"`
		OptionID   string `json:"option_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, errors.Validation("invalid JSON body"))
		return
	}

	if err := card.SelectOption(req.QuestionID, req.OptionID); err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, toCardView(card))
}

func (a *API) submitQuiz(c *gin.Context) {
	card, err := a.cards.Get(c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}

	if _, err := card.Submit(c.Request.Context()); err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, toCardView(card))
}

func (a *API) retryQuiz(c *gin.Context) {
	card, err := a.cards.Get(c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}

	if err := card.Retry(); err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, toCardView(card))
}

func (a *API) skipQuiz(c *gin.Context) {
	card, err := a.cards.Get(c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}

	if err := card.Skip(c.Request.Context()); err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, toCardView(card))
}

func (a *API) toggleMinimized(c *gin.Context) {
	card, err := a.cards.Get(c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}

	if err := card.ToggleMinimized(); err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, toCardView(card))
}

func abortWithError(c *gin.Context, err error) {
	e := errors.Convert(err)
	c.AbortWithStatusJSON(e.HTTPStatusCode(), e)
}

// ---- Views ----

type sessionView struct {
	SessionID string        `json:"session_id"`
	Title     string        `json:"title"`
	Messages  []messageView `json:"messages"`
}

type messageView struct {
	MessageID string    `json:"message_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Quiz      *quizView `json:"quiz,omitempty"`
}

type quizView struct {
	QuizID    string         `json:"quiz_id"`
	Topic     string         `json:"topic"`
	Questions []questionView `json:"questions"`
}

type questionView struct {
	QuestionID   string       `json:"question_id"`
	QuestionText string       `json:"question"`
	Options      []optionView `json:"options"`
}

type optionView struct {
	OptionID   string `json:"option_id"`
	OptionText string `json:"text"`
}

type cardView struct {
	QuizID    string            `json:"quiz_id"`
	State     string            `json:"state"`
	Minimized bool              `json:"minimized"`
	Selected  map[string]string `json:"selected"`
	Summary   string            `json:"summary,omitempty"`
	Result    *evaluationView   `json:"evaluation,omitempty"`
}

type evaluationView struct {
	Score      int          `json:"score"`
	Total      int          `json:"total"`
	Percentage int          `json:"percentage"`
	Category   string       `json:"category"`
	Results    []resultView `json:"results"`
}

type resultView struct {
	Question      string `json:"question"`
	UserAnswer    string `json:"user_answer"`
	CorrectAnswer string `json:"correct_answer"`
	IsCorrect     bool   `json:"is_correct"`
	Explanation   string `json:"explanation,omitempty"`
}

func toSessionView(s domain.Session) sessionView {
	out := sessionView{
		SessionID: s.SessionID,
		Title:     s.Title,
		Messages:  make([]messageView, 0, len(s.Messages)),
	}
	for _, m := range s.Messages {
		out.Messages = append(out.Messages, toMessageView(m))
	}
	return out
}

func toMessageView(m domain.Message) messageView {
	v := messageView{
		MessageID: m.MessageID,
		Role:      string(m.Role),
		Content:   m.Content,
		Timestamp: m.Timestamp,
	}
	if m.Quiz != nil {
		qv := toQuizView(*m.Quiz)
		v.Quiz = &qv
	}
	return v
}

// toQuizView deliberately omits correct answers and explanations: the
// presentation layer must not see them before evaluation.
func toQuizView(q domain.Quiz) quizView {
	v := quizView{
		QuizID:    q.QuizID,
		Topic:     q.Topic,
		Questions: make([]questionView, 0, len(q.Questions)),
	}
	for _, question := range q.Questions {
		qv := questionView{
			QuestionID:   question.QuestionID,
			QuestionText: question.QuestionText,
			Options:      make([]optionView, 0, len(question.Options)),
		}
		for _, o := range question.Options {
			qv.Options = append(qv.Options, optionView{OptionID: o.OptionID, OptionText: o.OptionText})
		}
		v.Questions = append(v.Questions, qv)
	}
	return v
}

func toCardView(card *quiz.Card) cardView {
	v := cardView{
		QuizID:    card.Quiz().QuizID,
		State:     card.State().String(),
		Minimized: card.Minimized(),
		Selected:  card.Selected(),
		Summary:   card.Summary(),
	}

	if ev := card.Evaluation(); ev != nil {
		rv := evaluationView{
			Score:      ev.Score,
			Total:      ev.Total,
			Percentage: ev.Percentage,
			Category:   quiz.ScoreCategory(ev.Percentage),
			Results:    make([]resultView, 0, len(ev.Results)),
		}
		for _, r := range ev.Results {
			rv.Results = append(rv.Results, resultView{
				Question:      r.Question,
				UserAnswer:    r.UserAnswer,
				CorrectAnswer: r.CorrectAnswer,
				IsCorrect:     r.IsCorrect,
				Explanation:   r.Explanation,
			})
		}
		v.Result = &rv
	}

	return v
}
