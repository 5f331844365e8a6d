package diagnosis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	model "github.com/capcoach/capcoach/backend/internal/model/diagnosis"
	"github.com/capcoach/capcoach/backend/internal/service/classifier"
)

const defaultCallTimeout = 30 * time.Second

// UserContext describes the person starting a session.
type UserContext struct {
	Name       string            `json:"name,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// SessionStart is returned by CreateSession.
type SessionStart struct {
	SessionID         string `json:"sessionId"`
	WelcomeText       string `json:"welcomeText"`
	FirstQuestionText string `json:"firstQuestionText"`
	Degraded          bool   `json:"degraded,omitempty"`
}

// Reply is the outcome of one submitted user message.
type Reply struct {
	AIReplyText      string       `json:"aiReplyText"`
	DetectedPatterns model.Scores `json:"detectedPatterns"`
	DetectedEmotions model.Scores `json:"detectedEmotions"`
	NextQuestionType string       `json:"nextQuestionType"`
	NextQuestionText string       `json:"nextQuestionText"`
	Progress         float64      `json:"progress"`
	Degraded         bool         `json:"degraded,omitempty"`
	// StreamReset is set when deltas of a failed reply were already sent;
	// AIReplyText replaces them.
	StreamReset      bool         `json:"streamReset,omitempty"`
}

// ReplyRequest is everything the reply generator needs for one answer.
type ReplyRequest struct {
	SessionID    string                   `json:"sessionId"`
	UserText     string                   `json:"userText"`
	Emotions     model.Scores             `json:"emotions"`
	Patterns     model.Scores             `json:"patterns"`
	NextQuestion Question                 `json:"nextQuestion"`
	History      []model.ConversationTurn `json:"history"`
}

// ReplyGenerator writes the coach's answer.
type ReplyGenerator interface {
	Generate(ctx context.Context, req ReplyRequest) (string, error)
}

// ReplyStreamer is implemented by generators that can emit partial output.
// onDelta receives each chunk; the full text is returned at the end.
type ReplyStreamer interface {
	StreamReply(ctx context.Context, req ReplyRequest, onDelta func(string) error) (string, error)
}

// Greeter writes the welcome text for a new session.
type Greeter interface {
	Greet(ctx context.Context, user UserContext) (string, error)
}

// Insights is the live diagnostic view of a session.
type Insights struct {
	SessionID       string                 `json:"sessionId"`
	Insights        model.DisorderInsights `json:"insights"`
	HasSignal       bool                   `json:"hasSignal"`
	DominantEmotion string                 `json:"dominantEmotion,omitempty"`
	DominantPattern string                 `json:"dominantPattern,omitempty"`
	// PeakEmotion and PeakPattern are the strongest single-message signals.
	PeakEmotion          *model.EmotionalAnalysis `json:"peakEmotion,omitempty"`
	PeakEmotionMessageID string                   `json:"peakEmotionMessageId,omitempty"`
	PeakPattern          *model.Pattern           `json:"peakPattern,omitempty"`
	NextQuestion         Question                 `json:"nextQuestion"`
	Progress             float64                  `json:"progress"`
	Closed               bool                     `json:"closed"`
}

// EmotionAnalysis is the answer of AnalyzeEmotions.
type EmotionAnalysis struct {
	Scores          model.Scores        `json:"scores"`
	DominantEmotion string              `json:"dominantEmotion"`
	Keywords        map[string][]string `json:"keywords,omitempty"`
	Source          string              `json:"source"`
	Degraded        bool                `json:"degraded,omitempty"`
}

// Health summarizes the engine's wiring.
type Health struct {
	ActiveSessions  int    `json:"activeSessions"`
	EmotionSource   string `json:"emotionSource"`
	PatternSource   string `json:"patternSource"`
	FallbackEnabled bool   `json:"fallbackEnabled"`
}

// Options wires the engine's collaborators.
type Options struct {
	Emotions  classifier.Classifier
	Patterns  classifier.Classifier
	Replies   ReplyGenerator
	Greeter   Greeter
	Questions *QuestionBank

	// FallbackEnabled lets the engine answer with FallbackReplies (a
	// TemplateReplier when nil) and the bank welcome when a model call fails.
	FallbackEnabled bool
	FallbackReplies ReplyGenerator

	CallTimeout  time.Duration
	HistoryLimit int
	Now          func() time.Time
	NewID        func() string
}

// Engine is the diagnostic session surface used by the transport layer.
type Engine struct {
	store           *Store
	emotions        classifier.Classifier
	patterns        classifier.Classifier
	replies         ReplyGenerator
	fallbackReplies ReplyGenerator
	greeter         Greeter
	questions       *QuestionBank
	callTimeout     time.Duration
	historyLimit    int
	now             func() time.Time
	newID           func() string
}

// NewEngine validates the wiring and returns a ready engine.
func NewEngine(store *Store, opts Options) (*Engine, error) {
	if store == nil {
		return nil, errors.New("diagnosis engine: store is required")
	}
	if opts.Emotions == nil || opts.Patterns == nil {
		return nil, errors.New("diagnosis engine: both classifiers are required")
	}
	if opts.Replies == nil {
		return nil, errors.New("diagnosis engine: reply generator is required")
	}
	if err := checkKind(opts.Emotions, classifier.KindEmotion); err != nil {
		return nil, err
	}
	if err := checkKind(opts.Patterns, classifier.KindPattern); err != nil {
		return nil, err
	}

	e := &Engine{
		store:           store,
		emotions:        opts.Emotions,
		patterns:        opts.Patterns,
		replies:         opts.Replies,
		greeter:         opts.Greeter,
		questions:       opts.Questions,
		callTimeout:     opts.CallTimeout,
		historyLimit:    opts.HistoryLimit,
		now:             opts.Now,
		newID:           opts.NewID,
	}
	if opts.FallbackEnabled {
		e.fallbackReplies = opts.FallbackReplies
		if e.fallbackReplies == nil {
			e.fallbackReplies = TemplateReplier{}
		}
	}
	if e.questions == nil {
		e.questions = DefaultQuestionBank()
	}
	if e.callTimeout <= 0 {
		e.callTimeout = defaultCallTimeout
	}
	if e.historyLimit <= 0 {
		e.historyLimit = MaxTurns
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.newID == nil {
		e.newID = uuid.NewString
	}
	return e, nil
}

// Questions exposes the active question bank.
func (e *Engine) Questions() *QuestionBank { return e.questions }

// CreateSession opens a new session and returns the greeting plus the first
// question.
func (e *Engine) CreateSession(ctx context.Context, user UserContext) (SessionStart, error) {
	start := SessionStart{
		WelcomeText:       e.questions.Welcome,
		FirstQuestionText: e.questions.FirstQuestion,
	}

	if e.greeter != nil {
		callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
		welcome, err := e.greeter.Greet(callCtx, user)
		cancel()
		switch {
		case err == nil && strings.TrimSpace(welcome) != "":
			start.WelcomeText = strings.TrimSpace(welcome)
		case ctx.Err() != nil:
			return SessionStart{}, ctx.Err()
		case e.fallbackReplies != nil:
			log.Warn().Str("component", "diagnosis").Err(err).Msg("greeting failed, using question bank welcome")
			start.Degraded = true
		default:
			if err == nil {
				err = errors.New("empty greeting")
			}
			return SessionStart{}, &CollaboratorError{Collaborator: "greeter", Err: err}
		}
	}

	start.SessionID = e.newID()
	if err := e.store.Create(start.SessionID); err != nil {
		return SessionStart{}, err
	}

	log.Info().Str("component", "diagnosis").Str("session_id", start.SessionID).Msg("session created")
	return start, nil
}

// SubmitUserMessage classifies text, generates a reply and commits both turns.
// On any failure the session is left untouched.
func (e *Engine) SubmitUserMessage(ctx context.Context, sessionID, text string) (Reply, error) {
	return e.submit(ctx, sessionID, text, nil)
}

// StreamUserMessage behaves like SubmitUserMessage and forwards reply chunks to
// onDelta as they arrive. Generators without streaming support deliver the
// whole reply as one chunk.
func (e *Engine) StreamUserMessage(ctx context.Context, sessionID, text string, onDelta func(string) error) (Reply, error) {
	if onDelta == nil {
		onDelta = func(string) error { return nil }
	}
	return e.submit(ctx, sessionID, text, onDelta)
}

func (e *Engine) submit(ctx context.Context, sessionID, text string, onDelta func(string) error) (Reply, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Reply{}, fmt.Errorf("submit message: %w", ErrInvalidTurn)
	}

	snapshot, err := e.store.Snapshot(sessionID)
	if err != nil {
		return Reply{}, err
	}
	if snapshot.Closed {
		return Reply{}, ErrSessionClosed
	}

	emotions, patterns, err := e.classify(ctx, text)
	if err != nil {
		return Reply{}, err
	}

	projected := snapshot.Context.Clone()
	projected.AddTurn(userTurn(text, emotions, patterns, e.stamp(projected)))
	question := NextQuestion(projected, e.questions)

	req := ReplyRequest{
		SessionID:    sessionID,
		UserText:     text,
		Emotions:     emotions.Scores.Clone(),
		Patterns:     patterns.Scores.Clone(),
		NextQuestion: question,
		History:      snapshot.Context.RecentTurns(e.historyLimit),
	}
	replyText, outcome, err := e.generateReply(ctx, req, onDelta)
	if err != nil {
		return Reply{}, err
	}
	if err := ctx.Err(); err != nil {
		return Reply{}, err
	}

	var progress float64
	err = e.store.Update(sessionID, func(c *model.ConversationContext) error {
		c.AddTurn(userTurn(text, emotions, patterns, e.stamp(c)))
		c.AddTurn(model.NewTurn(model.SpeakerAI, replyText, nil, nil, e.stamp(c)))
		progress = Progress(c.Len())
		return nil
	})
	if err != nil {
		return Reply{}, err
	}

	return Reply{
		AIReplyText:      replyText,
		DetectedPatterns: patterns.Scores,
		DetectedEmotions: emotions.Scores,
		NextQuestionType: question.Type,
		NextQuestionText: question.Text,
		Progress:         progress,
		Degraded:         emotions.Degraded || patterns.Degraded || outcome.degraded,
		StreamReset:      outcome.reset,
	}, nil
}

func userTurn(text string, emotions, patterns classifier.Result, ts time.Time) model.ConversationTurn {
	return model.NewTurn(model.SpeakerUser, text, emotions.Scores, patterns.Scores, ts).WithEmotionKeywords(emotions.Keywords)
}

// classify runs both classifiers concurrently and filters their output
// through the label allow-lists.
func (e *Engine) classify(ctx context.Context, text string) (emotions, patterns classifier.Result, err error) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r, err := e.callClassifier(gctx, "emotion classifier", e.emotions, text, model.EmotionLabels)
		emotions = r
		return err
	})
	g.Go(func() error {
		r, err := e.callClassifier(gctx, "pattern classifier", e.patterns, text, model.PatternLabels)
		patterns = r
		return err
	})
	if err := g.Wait(); err != nil {
		return classifier.Result{}, classifier.Result{}, err
	}
	return emotions, patterns, nil
}

func (e *Engine) callClassifier(ctx context.Context, name string, c classifier.Classifier, text string, allow model.LabelSet) (classifier.Result, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()

	result, err := c.Analyze(callCtx, text)
	if err != nil {
		return classifier.Result{}, &CollaboratorError{Collaborator: name, Err: err}
	}

	scores, dropped := result.Scores.Filter(allow)
	if len(dropped) > 0 {
		log.Warn().Str("component", "diagnosis").Str("collaborator", name).Strs("labels", dropped).Msg("dropped unknown labels")
	}
	result.Scores = scores
	for label := range result.Keywords {
		if _, ok := scores[label]; !ok {
			delete(result.Keywords, label)
		}
	}
	if result.Degraded {
		log.Warn().Str("component", "diagnosis").Str("collaborator", name).Str("source", result.Source).Msg("degraded classification")
	}
	return result, nil
}

type replyOutcome struct {
	degraded bool
	reset    bool
}

func (e *Engine) generateReply(ctx context.Context, req ReplyRequest, onDelta func(string) error) (string, replyOutcome, error) {
	var streamed atomic.Bool
	primaryDelta := onDelta
	if onDelta != nil {
		primaryDelta = func(delta string) error {
			streamed.Store(true)
			return onDelta(delta)
		}
	}

	text, err := e.callReplies(ctx, e.replies, req, primaryDelta)
	if err == nil {
		return text, replyOutcome{}, nil
	}
	if ctx.Err() != nil || e.fallbackReplies == nil {
		return "", replyOutcome{}, &CollaboratorError{Collaborator: "reply generator", Err: err}
	}

	log.Warn().Str("component", "diagnosis").Str("session_id", req.SessionID).Err(err).Msg("reply generator failed, using fallback")

	// a partial reply already reached the client, so the fallback text is
	// only delivered whole with the final reply
	outcome := replyOutcome{degraded: true, reset: streamed.Load()}
	fallbackDelta := onDelta
	if outcome.reset {
		fallbackDelta = nil
	}
	text, fallbackErr := e.callReplies(ctx, e.fallbackReplies, req, fallbackDelta)
	if fallbackErr != nil {
		return "", replyOutcome{}, &CollaboratorError{Collaborator: "reply generator", Err: errors.Join(err, fallbackErr)}
	}
	return text, outcome, nil
}

func (e *Engine) callReplies(ctx context.Context, gen ReplyGenerator, req ReplyRequest, onDelta func(string) error) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()

	var (
		text string
		err  error
	)
	if streamer, ok := gen.(ReplyStreamer); ok && onDelta != nil {
		text, err = streamer.StreamReply(callCtx, req, onDelta)
	} else {
		text, err = gen.Generate(callCtx, req)
		if err == nil && onDelta != nil && strings.TrimSpace(text) != "" {
			err = onDelta(text)
		}
	}
	if err != nil {
		return "", err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors.New("empty reply")
	}
	return text, nil
}

// stamp returns a timestamp strictly after the last turn of c.
func (e *Engine) stamp(c *model.ConversationContext) time.Time {
	now := e.now().UTC()
	if n := len(c.Turns); n > 0 {
		if last := c.Turns[n-1].Timestamp; !now.After(last) {
			now = last.Add(time.Nanosecond)
		}
	}
	return now
}

// CloseSession resolves the dominant disorder and freezes the summary. Closing
// an already closed session returns the same summary.
func (e *Engine) CloseSession(_ context.Context, sessionID string) (model.DiagnosisSummary, error) {
	summary, err := e.store.Close(sessionID, func(c *model.ConversationContext) model.DiagnosisSummary {
		insights := model.InsightsFromSummaries(c.DetectedPatternsSummary, c.EmotionalStateSummary)
		insights.CalculateDominantDisorder()
		return model.DiagnosisSummary{
			SessionID:           sessionID,
			Timestamp:           e.now().UTC(),
			DisorderInsights:    insights,
			SuggestedActions:    e.questions.SuggestedActions(insights),
			PatternObservations: c.DetectedPatternsSummary.Clone(),
			EmotionalTrends:     c.EmotionalStateSummary.Clone(),
		}
	})
	if err != nil {
		return model.DiagnosisSummary{}, err
	}

	log.Info().Str("component", "diagnosis").Str("session_id", sessionID).Str("dominant", string(summary.DisorderInsights.DominantDisorder)).Msg("session closed")
	return summary, nil
}

// Snapshot returns a detached copy of the session.
func (e *Engine) Snapshot(_ context.Context, sessionID string) (SessionSnapshot, error) {
	return e.store.Snapshot(sessionID)
}

// Progress reports how far the session is towards MaxTurns.
func (e *Engine) Progress(_ context.Context, sessionID string) (float64, error) {
	c, err := e.store.Get(sessionID)
	if err != nil {
		return 0, err
	}
	return Progress(c.Len()), nil
}

// NextQuestion returns the question the coach would ask now.
func (e *Engine) NextQuestion(_ context.Context, sessionID string) (Question, error) {
	c, err := e.store.Get(sessionID)
	if err != nil {
		return Question{}, err
	}
	return NextQuestion(c, e.questions), nil
}

// Insights computes the live disorder scores without closing the session.
func (e *Engine) Insights(_ context.Context, sessionID string) (Insights, error) {
	snapshot, err := e.store.Snapshot(sessionID)
	if err != nil {
		return Insights{}, err
	}
	c := snapshot.Context

	insights := model.InsightsFromSummaries(c.DetectedPatternsSummary, c.EmotionalStateSummary)
	insights.CalculateDominantDisorder()

	out := Insights{
		SessionID:    sessionID,
		Insights:     insights,
		HasSignal:    insights.HasSignal(),
		NextQuestion: NextQuestion(c, e.questions),
		Progress:     Progress(c.Len()),
		Closed:       snapshot.Closed,
	}
	if emotion, _, ok := c.EmotionalStateSummary.Dominant(); ok {
		out.DominantEmotion = emotion
	}
	if pattern, _, ok := c.DetectedPatternsSummary.Dominant(); ok {
		out.DominantPattern = pattern
	}
	if peak, ok := c.SessionEmotions.OverallDominant(); ok {
		out.PeakEmotion = &peak
		out.PeakEmotionMessageID, _, _ = c.SessionEmotions.MostIntense(peak.Tone)
	}
	if peak, ok := c.SessionPatterns.DominantOverall(); ok {
		out.PeakPattern = &peak
	}
	return out, nil
}

// ClearConversation empties the session and reopens it if it was closed.
func (e *Engine) ClearConversation(_ context.Context, sessionID string) error {
	return e.store.Clear(sessionID)
}

// AnalyzeEmotions classifies free text without touching any session.
func (e *Engine) AnalyzeEmotions(ctx context.Context, text string) (EmotionAnalysis, error) {
	if strings.TrimSpace(text) == "" {
		return EmotionAnalysis{}, fmt.Errorf("analyze emotions: %w", ErrInvalidTurn)
	}

	result, err := e.callClassifier(ctx, "emotion classifier", e.emotions, text, model.EmotionLabels)
	if err != nil {
		return EmotionAnalysis{}, err
	}

	dominant := "neutral"
	if label, _, ok := result.Scores.Positive().Dominant(); ok {
		dominant = label
	}
	return EmotionAnalysis{
		Scores:          result.Scores,
		DominantEmotion: dominant,
		Keywords:        result.Keywords,
		Source:          result.Source,
		Degraded:        result.Degraded,
	}, nil
}

// Health reports the engine's wiring.
func (e *Engine) Health() Health {
	return Health{
		ActiveSessions:  e.store.Len(),
		EmotionSource:   sourceOf(e.emotions),
		PatternSource:   sourceOf(e.patterns),
		FallbackEnabled: e.fallbackReplies != nil,
	}
}

// checkKind rejects a classifier wired to the wrong label space.
func checkKind(c classifier.Classifier, want classifier.Kind) error {
	k, ok := c.(interface{ Kind() classifier.Kind })
	if !ok || k.Kind() == want {
		return nil
	}
	return fmt.Errorf("diagnosis engine: %s classifier wired as %s", k.Kind(), want)
}

func sourceOf(c classifier.Classifier) string {
	if svc, ok := c.(interface{ Enabled() bool }); ok && svc.Enabled() {
		return classifier.SourceLLM
	}
	return classifier.SourceKeyword
}
