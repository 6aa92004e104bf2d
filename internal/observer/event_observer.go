package observer

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ConsoleEvent represents a playground or liveness lifecycle event
type ConsoleEvent struct {
	EventType EventType      `json:"event_type"`
	Timestamp time.Time      `json:"timestamp"`
	Feature   string         `json:"feature,omitempty"`
	Country   string         `json:"country,omitempty"`
	Duration  time.Duration  `json:"duration,omitempty"`
	Success   bool           `json:"success"`
	Outcome   string         `json:"outcome,omitempty"`
	Reason    string         `json:"reason,omitempty"`
	TraceID   string         `json:"trace_id,omitempty"`
	Error     string         `json:"error,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// EventType represents the type of console event
type EventType string

const (
	// AnalysisStarted when a request is about to be submitted
	AnalysisStarted EventType = "analysis_started"
	// AnalysisCompleted when the backend answered with a usable result
	AnalysisCompleted EventType = "analysis_completed"
	// AnalysisFailed when the call ended in any failure kind
	AnalysisFailed EventType = "analysis_failed"
	// AnalysisBlocked when validation stopped the request before the network
	AnalysisBlocked EventType = "analysis_blocked"
	// CandidateImageFetched when a face search candidate image was loaded
	CandidateImageFetched EventType = "candidate_image_fetched"
	// CandidateImageFailed when a candidate image could not be loaded
	CandidateImageFailed EventType = "candidate_image_failed"
	// LivenessStateChanged on every liveness flow transition
	LivenessStateChanged EventType = "liveness_state_changed"
	// LivenessFinished when a liveness flow reached a terminal state
	LivenessFinished EventType = "liveness_finished"
)

// Observer defines the interface for event observers
type Observer interface {
	OnEvent(ctx context.Context, event ConsoleEvent)
	GetObserverName() string
}

// Subject defines the interface for event publishers
type Subject interface {
	Subscribe(observer Observer)
	Unsubscribe(observer Observer)
	NotifyObservers(ctx context.Context, event ConsoleEvent)
}

// LoggingObserver logs console events
type LoggingObserver struct {
	logger *logrus.Logger
}

// NewLoggingObserver creates a new logging observer
func NewLoggingObserver(logger *logrus.Logger) Observer {
	return &LoggingObserver{
		logger: logger,
	}
}

// OnEvent handles events by logging them
func (o *LoggingObserver) OnEvent(ctx context.Context, event ConsoleEvent) {
	fields := logrus.Fields{
		"event_type": event.EventType,
		"success":    event.Success,
	}
	if event.Feature != "" {
		fields["feature"] = event.Feature
	}
	if event.Country != "" {
		fields["country"] = event.Country
	}
	if event.Duration > 0 {
		fields["duration_ms"] = event.Duration.Milliseconds()
	}
	if event.Outcome != "" {
		fields["outcome"] = event.Outcome
	}
	if event.Reason != "" {
		fields["reason"] = event.Reason
	}
	if event.TraceID != "" {
		fields["trace_id"] = event.TraceID
	}
	if event.Error != "" {
		fields["error"] = event.Error
	}
	for k, v := range event.Metadata {
		fields[k] = v
	}

	entry := o.logger.WithFields(fields)
	switch event.EventType {
	case AnalysisStarted:
		entry.Info("Analysis submitted")
	case AnalysisCompleted:
		entry.Info("Analysis completed")
	case AnalysisFailed:
		entry.Warn("Analysis failed")
	case AnalysisBlocked:
		entry.Info("Analysis blocked before submission")
	case CandidateImageFetched:
		entry.Debug("Candidate image fetched")
	case CandidateImageFailed:
		entry.Warn("Candidate image unavailable")
	case LivenessStateChanged:
		entry.Debug("Liveness state changed")
	case LivenessFinished:
		entry.Info("Liveness flow finished")
	default:
		entry.Info("Console event occurred")
	}
}

// GetObserverName returns the observer name
func (o *LoggingObserver) GetObserverName() string {
	return "logging_observer"
}

// EventPublisher implements the Subject interface
type EventPublisher struct {
	mu        sync.RWMutex
	observers []Observer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher() Subject {
	return &EventPublisher{
		observers: make([]Observer, 0),
	}
}

// Subscribe adds an observer
func (p *EventPublisher) Subscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, observer)
}

// Unsubscribe removes an observer
func (p *EventPublisher) Unsubscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, obs := range p.observers {
		if obs.GetObserverName() == observer.GetObserverName() {
			p.observers = append(p.observers[:i], p.observers[i+1:]...)
			break
		}
	}
}

// NotifyObservers delivers the event to every observer in subscription order.
// Events are emitted after the state they describe has settled, so delivery is synchronous.
func (p *EventPublisher) NotifyObservers(ctx context.Context, event ConsoleEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	p.mu.RLock()
	observers := make([]Observer, len(p.observers))
	copy(observers, p.observers)
	p.mu.RUnlock()

	for _, obs := range observers {
		notifyOne(ctx, obs, event)
	}
}

func notifyOne(ctx context.Context, obs Observer, event ConsoleEvent) {
	defer func() {
		if r := recover(); r != nil {
			// Log panic but don't crash the application
			logrus.WithField("observer", obs.GetObserverName()).
				WithField("panic", r).
				Error("Observer panicked while handling event")
		}
	}()
	obs.OnEvent(ctx, event)
}

// Nop is a Subject that drops every event.
type Nop struct{}

func (Nop) Subscribe(Observer)                            {}
func (Nop) Unsubscribe(Observer)                          {}
func (Nop) NotifyObservers(context.Context, ConsoleEvent) {}
