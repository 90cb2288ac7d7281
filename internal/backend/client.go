package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/victornm/mcqtutor/internal/domain"
	"github.com/victornm/mcqtutor/internal/errors"
)

// Client talks to the external LLM backend over HTTP/JSON. The backend has
// shipped several response shapes over time; every response path is converted
// into one canonical shape immediately on receipt so downstream logic never
// sees the differences. Each call is attempted exactly once, no retries.
type Client struct {
	httpClient *http.Client
	baseURL    string

	chatPath     string
	generatePath string
	evaluatePath string
}

type Config struct {
	// BaseURL is the backend base path, e.g. "http://localhost:8000/api".
	BaseURL string
	// LegacyPaths switches to the /generate-mcqs and /evaluate-mcqs routes of
	// older backend deployments.
	LegacyPaths bool
	// HTTPClient defaults to http.DefaultClient. In-flight calls are not
	// cancelled or timed out unless the caller's context says so.
	HTTPClient *http.Client
}

func NewClient(c Config) *Client {
	hc := c.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}

	cl := &Client{
		httpClient:   hc,
		baseURL:      strings.TrimRight(c.BaseURL, "/"),
		chatPath:     "/chat",
		generatePath: "/mcq/generate",
		evaluatePath: "/mcq/evaluate",
	}
	if c.LegacyPaths {
		cl.generatePath = "/generate-mcqs"
		cl.evaluatePath = "/evaluate-mcqs"
	}

	return cl
}

func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return errors.Internal(fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return errors.Internal(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Network(fmt.Errorf("backend %s: %w", path, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return errors.Network(fmt.Errorf("backend %s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(b))))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Network(fmt.Errorf("backend %s: decode response: %w", path, err))
	}

	return nil
}

// ChatReply is the canonical chat response shape.
type ChatReply struct {
	Content       string
	IsQuizRequest bool
	QuizTopic     string
	// Quiz is set when a merged-classification backend embeds the generated
	// quiz directly in the chat response.
	Quiz *GeneratedQuiz
}

// chatResponse accepts every field spelling observed across backend versions.
type chatResponse struct {
	Content     string          `json:"content"`
	Message     string          `json:"message"`
	IsMCQ       bool            `json:"isMCQ"`
	MCQData     json.RawMessage `json:"mcqData"`
	RequiresMCQ bool            `json:"requires_mcq"`
	MCQTopic    string          `json:"mcq_topic"`
}

// SendMessage sends one chat message and returns the normalized reply.
func (c *Client) SendMessage(ctx context.Context, text string) (*ChatReply, error) {
	in := struct {
		Message string `json:"message"`
	}{Message: text}

	var raw chatResponse
	if err := c.postJSON(ctx, c.chatPath, in, &raw); err != nil {
		return nil, err
	}

	reply := &ChatReply{
		Content:       raw.Content,
		IsQuizRequest: raw.IsMCQ || raw.RequiresMCQ,
		QuizTopic:     raw.MCQTopic,
	}
	if reply.Content == "" {
		reply.Content = raw.Message
	}

	if len(raw.MCQData) > 0 && string(raw.MCQData) != "null" {
		var q GeneratedQuiz
		if err := json.Unmarshal(raw.MCQData, &q); err == nil && len(q.Questions) > 0 {
			reply.IsQuizRequest = true
			reply.Quiz = &q
			if reply.QuizTopic == "" {
				reply.QuizTopic = q.Topic
			}
		}
	}

	return reply, nil
}

// GeneratedQuiz is the server-shaped quiz: options are keyed by short ids and
// keep the backend's object key order.
type GeneratedQuiz struct {
	Topic     string              `json:"topic"`
	Questions []GeneratedQuestion `json:"questions"`
}

type GeneratedQuestion struct {
	Question      string    `json:"question"`
	Options       OptionMap `json:"options"`
	CorrectAnswer string    `json:"correct_answer"`
	Explanation   string    `json:"explanation"`
}

// GenerateQuiz requests numQuestions MCQs on a topic. numQuestions defaults
// to 4 when not positive.
func (c *Client) GenerateQuiz(ctx context.Context, topic string, numQuestions int) (*GeneratedQuiz, error) {
	if numQuestions <= 0 {
		numQuestions = 4
	}

	in := struct {
		Topic        string `json:"topic"`
		NumQuestions int    `json:"num_questions"`
	}{Topic: topic, NumQuestions: numQuestions}

	var quiz GeneratedQuiz
	if err := c.postJSON(ctx, c.generatePath, in, &quiz); err != nil {
		return nil, err
	}

	return &quiz, nil
}

// Submission carries the selected option for one question together with the
// full question snapshot. The backend is stateless and needs every question
// restated on evaluation.
type Submission struct {
	QuestionID       string
	SelectedOptionID string
	Question         domain.Question
}

type evaluateRequest struct {
	Questions      []evaluateQuestion `json:"questions"`
	Answers        []string           `json:"answers"`
	OptionMappings []optionMapping    `json:"optionMappings"`
}

type evaluateQuestion struct {
	Question      string    `json:"question"`
	Options       OptionMap `json:"options"`
	CorrectAnswer string    `json:"correct_answer"`
	Explanation   string    `json:"explanation,omitempty"`
}

type optionMapping struct {
	QuestionID         string `json:"questionId"`
	SelectedOptionID   string `json:"selectedOptionId"`
	SelectedOptionText string `json:"selectedOptionText"`
	CorrectOptionID    string `json:"correctOptionId"`
	CorrectOptionText  string `json:"correctOptionText"`
}

type evaluateResponse struct {
	Score      int         `json:"score"`
	Total      int         `json:"total"`
	Percentage float64     `json:"percentage"`
	Results    []rawResult `json:"results"`
}

// rawResult accepts both camelCase and snake_case spellings, and a boolean
// that some backend versions return as a string.
type rawResult struct {
	Question         string          `json:"question"`
	UserAnswer       string          `json:"userAnswer"`
	UserAnswerSnake  string          `json:"user_answer"`
	CorrectAnswer    string          `json:"correctAnswer"`
	CorrectAnsSnake  string          `json:"correct_answer"`
	IsCorrect        json.RawMessage `json:"isCorrect"`
	IsCorrectSnake   json.RawMessage `json:"is_correct"`
	Explanation      string          `json:"explanation"`
}

// EvaluateQuiz submits answers for scoring. Each backend result is reconciled
// against the local question snapshots: bare option ids come back as display
// text and is_correct is coerced to a real boolean.
func (c *Client) EvaluateQuiz(ctx context.Context, subs []Submission) (*domain.Evaluation, error) {
	in := evaluateRequest{
		Questions:      make([]evaluateQuestion, 0, len(subs)),
		Answers:        make([]string, 0, len(subs)),
		OptionMappings: make([]optionMapping, 0, len(subs)),
	}

	for _, s := range subs {
		q := s.Question
		in.Questions = append(in.Questions, evaluateQuestion{
			Question:      q.QuestionText,
			Options:       optionsToMap(q.Options),
			CorrectAnswer: q.CorrectAnswerID,
			Explanation:   q.Explanation,
		})
		in.Answers = append(in.Answers, s.SelectedOptionID)
		in.OptionMappings = append(in.OptionMappings, optionMapping{
			QuestionID:         s.QuestionID,
			SelectedOptionID:   s.SelectedOptionID,
			SelectedOptionText: optionTextOr(q, s.SelectedOptionID),
			CorrectOptionID:    q.CorrectAnswerID,
			CorrectOptionText:  optionTextOr(q, q.CorrectAnswerID),
		})
	}

	var raw evaluateResponse
	if err := c.postJSON(ctx, c.evaluatePath, in, &raw); err != nil {
		return nil, err
	}

	ev := &domain.Evaluation{
		Score:      raw.Score,
		Total:      raw.Total,
		Percentage: normalizePercentage(raw.Percentage, raw.Score, raw.Total),
		Results:    make([]domain.Result, 0, len(raw.Results)),
	}

	for i, r := range raw.Results {
		res := domain.Result{
			Question:      r.Question,
			UserAnswer:    firstNonEmpty(r.UserAnswer, r.UserAnswerSnake),
			CorrectAnswer: firstNonEmpty(r.CorrectAnswer, r.CorrectAnsSnake),
			IsCorrect:     coerceBool(r.IsCorrect, r.IsCorrectSnake),
			Explanation:   r.Explanation,
		}

		// A value of <= 2 characters is an option id token, not display text.
		if i < len(subs) {
			m := in.OptionMappings[i]
			if len(res.UserAnswer) <= 2 {
				res.UserAnswer = m.SelectedOptionText
			}
			if len(res.CorrectAnswer) <= 2 {
				res.CorrectAnswer = m.CorrectOptionText
			}
		}

		ev.Results = append(ev.Results, res)
	}

	return ev, nil
}

func optionsToMap(opts []domain.Option) OptionMap {
	m := make(OptionMap, 0, len(opts))
	for _, o := range opts {
		m = append(m, OptionEntry{Key: o.OptionID, Text: o.OptionText})
	}
	return m
}

func optionTextOr(q domain.Question, optionID string) string {
	if t := q.OptionText(optionID); t != "" {
		return t
	}
	return "Unknown option"
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// coerceBool accepts a JSON bool or the strings "true"/"false".
func coerceBool(candidates ...json.RawMessage) bool {
	for _, c := range candidates {
		if len(c) == 0 {
			continue
		}

		var b bool
		if err := json.Unmarshal(c, &b); err == nil {
			return b
		}

		var s string
		if err := json.Unmarshal(c, &s); err == nil {
			return strings.EqualFold(strings.TrimSpace(s), "true")
		}
	}
	return false
}

// normalizePercentage rounds the backend's float percentage to an integer,
// recomputing from score/total when the backend omitted it.
func normalizePercentage(pct float64, score, total int) int {
	p := decimal.NewFromFloat(pct)
	if p.IsZero() && total > 0 && score > 0 {
		p = decimal.NewFromInt(int64(score * 100)).Div(decimal.NewFromInt(int64(total)))
	}
	return int(p.Round(0).IntPart())
}
