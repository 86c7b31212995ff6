package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/decoy/internal/classifier"
	"github.com/MikeSquared-Agency/decoy/internal/directive"
	"github.com/MikeSquared-Agency/decoy/internal/extractor"
	"github.com/MikeSquared-Agency/decoy/internal/hermes"
	"github.com/MikeSquared-Agency/decoy/internal/patterns"
	"github.com/MikeSquared-Agency/decoy/internal/policy"
	"github.com/MikeSquared-Agency/decoy/internal/report"
	"github.com/MikeSquared-Agency/decoy/internal/session"
	"github.com/MikeSquared-Agency/decoy/internal/store"
)

// Reporter delivers final reports. report.Client satisfies it.
type Reporter interface {
	Deliver(ctx context.Context, p report.Payload) error
}

// Engine bundles the per-turn components. Every field is required.
type Engine struct {
	Library    *patterns.Library
	Extractor  *extractor.Extractor
	Classifier *classifier.Classifier
	Machine    *session.Machine
	Builder    *directive.Builder
	Responder  *directive.Responder
	Policy     *policy.Policy
}

// Processor runs the per-message pipeline: analyze, advance the session,
// reply, evaluate reporting, commit. Turns for one session are serialized;
// different sessions never contend.
type Processor struct {
	eng      Engine
	store    store.SessionStore
	reporter Reporter
	hermes   hermes.Publisher
	logger   *slog.Logger
	now      func() time.Time

	locks keyedLocks
}

// New creates a processor. reporter and pub may be nil: without a reporter
// due reports stay pending, without a publisher no events are emitted.
func New(eng Engine, st store.SessionStore, reporter Reporter, pub hermes.Publisher, logger *slog.Logger) *Processor {
	return &Processor{
		eng:      eng,
		store:    st,
		reporter: reporter,
		hermes:   pub,
		logger:   logger,
		now:      time.Now,
		locks:    keyedLocks{m: make(map[string]*keyedLock)},
	}
}

// Result is what a processed turn returns to the caller.
type Result struct {
	SessionID    string                 `json:"sessionId"`
	Reply        string                 `json:"reply"`
	Source       directive.Source       `json:"source"`
	Stage        session.Stage          `json:"stage"`
	ScamDetected bool                   `json:"scamDetected"`
	ScamType     string                 `json:"scamType,omitempty"`
	Confidence   float64                `json:"confidence"`
	RiskLevel    string                 `json:"riskLevel,omitempty"`
	ReportStatus session.ReportStatus   `json:"reportStatus"`
	NewIntel     extractor.Intelligence `json:"newIntelligence"`
}

// Process handles one inbound message. On any error the persisted session is
// left as it was. A report due after the turn is delivered once the turn is
// committed.
func (p *Processor) Process(ctx context.Context, in Inbound) (Result, error) {
	if err := in.Validate(); err != nil {
		return Result{}, err
	}
	id := strings.TrimSpace(in.SessionID)
	text := strings.TrimSpace(in.Message.Text)

	unlock := p.locks.lock(id)
	defer unlock()

	cur, err := p.load(ctx, id, in.History)
	if err != nil {
		return Result{}, err
	}

	ext := p.eng.Extractor.Extract(text, cur.Intel)
	cls := p.eng.Classifier.Classify(ctx, text, cur.CounterpartyTexts())

	next := p.eng.Machine.Observe(cur, session.Inbound{
		Text:      text,
		Timestamp: in.Message.Timestamp.Time,
		Channel:   in.Metadata.Channel,
		Language:  in.Metadata.Language,
		Locale:    in.Metadata.Locale,
	}, session.Analysis{Extraction: ext, Classification: cls})

	d := p.eng.Builder.Build(next, text)
	// the generator appends the latest message itself
	reply := p.eng.Responder.Reply(ctx, d, cur.Turns)

	next = p.eng.Machine.Respond(next, session.Reply{
		Text:   reply.Text,
		Opener: reply.Opener,
		Excuse: reply.Excuse,
	})

	next, reason := p.eng.Policy.Evaluate(next)

	if err := p.store.Put(ctx, next); err != nil {
		p.logger.Error("failed to commit session", "session_id", id, "error", err)
		return Result{}, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	// Delivery follows the commit so a failed write never sends a report for a
	// turn that did not happen. The sent mark is a second write.
	delivered := false
	if next.ReportStatus == session.ReportPending && reason != policy.ReasonNone {
		if sent, ok := p.deliver(ctx, next, reason); ok {
			if err := p.store.Put(ctx, sent); err != nil {
				p.logger.Error("failed to record delivered report, session stays pending",
					"session_id", id,
					"error", err,
				)
			} else {
				next, delivered = sent, true
			}
		}
	}

	if cur.Verdict != session.VerdictConfirmed && next.Verdict == session.VerdictConfirmed {
		p.publish(hermes.SubjectScamConfirmed, hermes.ScamConfirmedEvent{
			EventID:    uuid.New().String(),
			SessionID:  id,
			ScamType:   next.ScamType,
			Confidence: next.Confidence,
			Turn:       next.InboundCount(),
			Timestamp:  p.now().UTC(),
		})
	}
	if delivered {
		p.publish(hermes.SubjectReportSent, hermes.ReportSentEvent{
			EventID:       uuid.New().String(),
			SessionID:     id,
			Reason:        string(reason),
			Categories:    next.ReportedCategories,
			TotalMessages: len(next.Turns),
			Timestamp:     p.now().UTC(),
		})
	}

	p.logger.Info("turn processed",
		"session_id", id,
		"turn", next.InboundCount(),
		"stage", string(next.Stage),
		"verdict", string(next.Verdict),
		"scam_type", next.ScamType,
		"confidence", next.Confidence,
		"source", string(reply.Source),
		"new_intel", ext.New.Count(),
		"report_status", string(next.ReportStatus),
	)

	return Result{
		SessionID:    id,
		Reply:        reply.Text,
		Source:       reply.Source,
		Stage:        next.Stage,
		ScamDetected: next.Verdict == session.VerdictConfirmed,
		ScamType:     next.ScamType,
		Confidence:   next.Confidence,
		RiskLevel:    next.RiskLevel,
		ReportStatus: next.ReportStatus,
		NewIntel:     ext.New,
	}, nil
}

// load returns the stored session, or a new one seeded from the caller's
// history when the id is unknown.
func (p *Processor) load(ctx context.Context, id string, history []Message) (*session.Session, error) {
	cur, err := p.store.Get(ctx, id)
	if err == nil {
		return cur, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		p.logger.Error("failed to load session", "session_id", id, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	s := p.eng.Machine.New(id)
	if len(history) == 0 {
		return s, nil
	}
	s = p.hydrate(s, history)
	p.logger.Info("session seeded from request history",
		"session_id", id,
		"turns", len(s.Turns),
	)
	return s, nil
}

// hydrate replays prior messages into s. Counterparty turns are scored by
// rules only so seeding never waits on an external classifier.
func (p *Processor) hydrate(s *session.Session, history []Message) *session.Session {
	for _, m := range recent(history) {
		text := clip(m.Text)
		if text == "" {
			continue
		}
		sender, _ := senderOf(m.Sender)
		if sender == session.SenderAgent {
			s = p.eng.Machine.Respond(s, session.Reply{Text: text, Timestamp: m.Timestamp.Time})
			continue
		}
		a := session.Analysis{
			Extraction:     p.eng.Extractor.Extract(text, s.Intel),
			Classification: p.eng.Classifier.Score(text, s.CounterpartyTexts()),
		}
		s = p.eng.Machine.Observe(s, session.Inbound{Text: text, Timestamp: m.Timestamp.Time}, a)
	}
	return s
}

// deliver sends the report for s and returns the session marked sent on
// success. On failure s is returned unchanged, still pending.
func (p *Processor) deliver(ctx context.Context, s *session.Session, reason policy.Reason) (*session.Session, bool) {
	if p.reporter == nil {
		return s, false
	}
	payload := report.Build(s, p.eng.Library)
	if err := p.reporter.Deliver(ctx, payload); err != nil {
		p.logger.Warn("report delivery failed, session stays pending",
			"session_id", s.ID,
			"reason", string(reason),
			"error", err,
		)
		return s, false
	}

	next := s.Clone()
	now := p.now().UTC()
	next.ReportStatus = session.ReportSent
	next.ReportedCategories = next.Intel.Categories()
	next.ReportedAt = &now

	p.logger.Info("report sent",
		"session_id", s.ID,
		"reason", string(reason),
		"total_messages", payload.TotalMessagesExchanged,
		"categories", strings.Join(next.ReportedCategories, ","),
	)
	return next, true
}

// Report delivers a report for id immediately, whatever the policy says.
func (p *Processor) Report(ctx context.Context, id string) (report.Payload, error) {
	unlock := p.locks.lock(id)
	defer unlock()

	s, err := p.store.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return report.Payload{}, ErrSessionNotFound
	}
	if err != nil {
		return report.Payload{}, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	payload := report.Build(s, p.eng.Library)
	if p.reporter == nil {
		return payload, fmt.Errorf("%w: no report endpoint configured", ErrReportDeliveryFailed)
	}

	next, ok := p.deliver(ctx, s, policy.ReasonManual)
	if !ok {
		return payload, ErrReportDeliveryFailed
	}
	if err := p.store.Put(ctx, next); err != nil {
		return payload, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	p.publish(hermes.SubjectReportSent, hermes.ReportSentEvent{
		EventID:       uuid.New().String(),
		SessionID:     id,
		Reason:        string(policy.ReasonManual),
		Categories:    next.ReportedCategories,
		TotalMessages: len(next.Turns),
		Timestamp:     p.now().UTC(),
	})
	return payload, nil
}

// Analysis is the stateless classification and extraction of one message.
type Analysis struct {
	ScamDetected bool                   `json:"scamDetected"`
	ScamType     string                 `json:"scamType"`
	Confidence   float64                `json:"confidence"`
	RiskLevel    string                 `json:"riskLevel"`
	Indicators   []string               `json:"indicators"`
	Tactics      []string               `json:"tactics"`
	Intelligence extractor.Intelligence `json:"extractedIntelligence"`
	Links        []patterns.URL         `json:"links,omitempty"`
}

// Analyze classifies and extracts msg without touching any session. History
// only feeds the escalation signal.
func (p *Processor) Analyze(ctx context.Context, msg Message, history []Message) (Analysis, error) {
	if err := msg.validate(); err != nil {
		return Analysis{}, err
	}
	text := strings.TrimSpace(msg.Text)

	var prior []string
	for _, m := range recent(history) {
		if text := clip(m.Text); text != "" && IsCounterparty(m.Sender) {
			prior = append(prior, text)
		}
	}

	ext := p.eng.Extractor.Extract(text, extractor.Intelligence{})
	cls := p.eng.Classifier.Classify(ctx, text, prior)
	return Analysis{
		ScamDetected: cls.Scam,
		ScamType:     cls.ScamType,
		Confidence:   cls.Confidence,
		RiskLevel:    cls.RiskLevel,
		Indicators:   cls.Indicators,
		Tactics:      ext.Tactics,
		Intelligence: ext.New,
		Links:        ext.URLs,
	}, nil
}

// Session returns the stored session for id.
func (p *Processor) Session(ctx context.Context, id string) (*session.Session, error) {
	s, err := p.store.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return s, nil
}

// Notes returns the agent notes a report for s would carry.
func (p *Processor) Notes(s *session.Session) string {
	return report.Notes(s, p.eng.Library)
}

// HandleInbound is the NATS handler for decoy.message.inbound. The reply, or
// the error, is published on decoy.message.reply.
func (p *Processor) HandleInbound(subject string, data []byte) {
	ctx := context.Background()

	var in Inbound
	if err := json.Unmarshal(data, &in); err != nil {
		p.logger.Error("failed to parse inbound message", "subject", subject, "error", err)
		return
	}

	evt := hermes.ReplyEvent{
		EventID:   uuid.New().String(),
		SessionID: in.SessionID,
	}
	res, err := p.Process(ctx, in)
	if err != nil {
		p.logger.Error("inbound message failed", "session_id", in.SessionID, "error", err)
		evt.Error = err.Error()
	} else {
		evt.Reply = res.Reply
		evt.Source = string(res.Source)
		evt.Stage = string(res.Stage)
		evt.ScamDetected = res.ScamDetected
	}
	evt.Timestamp = p.now().UTC()
	p.publish(hermes.SubjectReply, evt)
}

func (p *Processor) publish(subject string, evt any) {
	if p.hermes == nil {
		return
	}
	if err := p.hermes.Publish(subject, evt); err != nil {
		p.logger.Error("failed to publish event", "subject", subject, "error", err)
	}
}

// keyedLocks hands out one mutex per session id and forgets it once no
// caller holds or waits on it.
type keyedLocks struct {
	mu sync.Mutex
	m  map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedLocks) lock(id string) func() {
	k.mu.Lock()
	l, ok := k.m[id]
	if !ok {
		l = &keyedLock{}
		k.m[id] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.m, id)
		}
		k.mu.Unlock()
	}
}
