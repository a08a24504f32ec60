// Package events carries pipeline progress messages to observers decoupled
// from any rendering: structured logs, live websocket streams and per-article
// ledger logs.
package events

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Level is the severity of an event.
type Level string

const (
	LevelDebug   Level = "debug"
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarn    Level = "warn"
	LevelError   Level = "error"
)

// Event is a single progress message emitted during a run.
type Event struct {
	RunID      string    `json:"run_id"`
	CampaignID string    `json:"campaign_id"`
	Level      Level     `json:"level"`
	Message    string    `json:"message"`
	At         time.Time `json:"at"`
}

// Sink receives events. Implementations must be safe for concurrent use.
type Sink interface {
	Emit(ctx context.Context, e Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, e Event)

// Emit calls f.
func (f SinkFunc) Emit(ctx context.Context, e Event) { f(ctx, e) }

// Discard drops every event.
var Discard Sink = SinkFunc(func(context.Context, Event) {})

// Multi fans an event out to every non-nil sink.
func Multi(sinks ...Sink) Sink {
	filtered := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			filtered = append(filtered, s)
		}
	}
	return SinkFunc(func(ctx context.Context, e Event) {
		for _, s := range filtered {
			s.Emit(ctx, e)
		}
	})
}

// LogSink writes events to a slog.Logger.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink wraps logger.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Emit logs e at the matching slog level.
func (s *LogSink) Emit(ctx context.Context, e Event) {
	if s.logger == nil {
		return
	}
	level := slog.LevelInfo
	switch e.Level {
	case LevelDebug:
		level = slog.LevelDebug
	case LevelWarn:
		level = slog.LevelWarn
	case LevelError:
		level = slog.LevelError
	}
	s.logger.Log(ctx, level, e.Message, "run_id", e.RunID, "campaign_id", e.CampaignID, "event_level", string(e.Level))
}

const (
	subscriberBuffer = 64
	// replayPerRun events are kept per run so late subscribers see the start.
	replayPerRun = 256
	replayRuns   = 32
)

// Broadcaster fans events out to live subscribers keyed by run id. The most
// recent events of the last few runs are replayed to new subscribers.
type Broadcaster struct {
	mu      sync.Mutex
	subs    map[string]map[chan Event]struct{}
	history map[string][]Event
	order   []string
}

// NewBroadcaster builds an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subs:    map[string]map[chan Event]struct{}{},
		history: map[string][]Event{},
	}
}

// Subscribe registers a listener for runID. Buffered events of the run are
// delivered first. The returned cancel func must be called to release the
// subscription; it closes the channel.
func (b *Broadcaster) Subscribe(runID string) (<-chan Event, func()) {
	b.mu.Lock()
	backlog := b.history[runID]
	ch := make(chan Event, subscriberBuffer+len(backlog))
	for _, e := range backlog {
		ch <- e
	}
	if b.subs[runID] == nil {
		b.subs[runID] = map[chan Event]struct{}{}
	}
	b.subs[runID][ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs[runID], ch)
			if len(b.subs[runID]) == 0 {
				delete(b.subs, runID)
			}
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Emit delivers e to subscribers of e.RunID; slow subscribers lose events.
func (b *Broadcaster) Emit(_ context.Context, e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.remember(e)
	for ch := range b.subs[e.RunID] {
		select {
		case ch <- e:
		default:
		}
	}
}

func (b *Broadcaster) remember(e Event) {
	if e.RunID == "" {
		return
	}
	h, known := b.history[e.RunID]
	if !known {
		b.order = append(b.order, e.RunID)
		if len(b.order) > replayRuns {
			delete(b.history, b.order[0])
			b.order = b.order[1:]
		}
	}
	h = append(h, e)
	if len(h) > replayPerRun {
		h = h[len(h)-replayPerRun:]
	}
	b.history[e.RunID] = h
}

// Recorder is a Sink that also accumulates formatted lines, used to build the
// log sequence stored on a ProcessedRecord.
type Recorder struct {
	next  Sink
	base  Event
	mu    sync.Mutex
	lines []string
}

// NewRecorder forwards to next, stamping events with base run and campaign ids.
func NewRecorder(next Sink, runID, campaignID string) *Recorder {
	if next == nil {
		next = Discard
	}
	return &Recorder{next: next, base: Event{RunID: runID, CampaignID: campaignID}}
}

// Log emits a message at level.
func (r *Recorder) Log(ctx context.Context, level Level, msg string) {
	e := r.base
	e.Level = level
	e.Message = msg
	e.At = time.Now().UTC()
	r.Emit(ctx, e)
}

// Emit records and forwards e.
func (r *Recorder) Emit(ctx context.Context, e Event) {
	r.mu.Lock()
	r.lines = append(r.lines, "["+string(e.Level)+"] "+e.Message)
	r.mu.Unlock()
	r.next.Emit(ctx, e)
}

// Lines returns a copy of the recorded lines.
func (r *Recorder) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.lines...)
}
