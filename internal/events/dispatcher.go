// Package events is the single entry point for quiz-completion
// notifications, whichever hook name or transport delivers them.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/mind-engage/mindengage-failedq/internal/capture"
	"github.com/mind-engage/mindengage-failedq/internal/eventlog"
	"github.com/mind-engage/mindengage-failedq/internal/lifecycle"
	"github.com/mind-engage/mindengage-failedq/internal/logger"
)

var ErrUnknownHook = errors.New("unknown hook")

// Hook names the host has used for "quiz finished" across versions.
const (
	HookFinishQuiz      = "ays_finish_quiz"
	HookAfterFinishQuiz = "ays_after_finish_quiz"
	HookAjaxFinishQuiz  = "wp_ajax_ays_finish_quiz"
	HookCaptureAjax     = "quiz_maker_fq_capture_ajax"
)

var DefaultHooks = []string{HookFinishQuiz, HookAfterFinishQuiz, HookAjaxFinishQuiz, HookCaptureAjax}

type Applier interface {
	Apply(ctx context.Context, e capture.Event) (lifecycle.Summary, error)
}

type Recorder interface {
	Append(ctx context.Context, e eventlog.Entry) error
}

type Dispatcher struct {
	applier Applier
	audit   Recorder
	log     *logger.Logger

	mu    sync.RWMutex
	hooks map[string]struct{}
}

// NewDispatcher registers DefaultHooks plus extra. audit may be nil.
func NewDispatcher(a Applier, audit Recorder, log *logger.Logger, extra ...string) *Dispatcher {
	d := &Dispatcher{applier: a, audit: audit, log: log, hooks: map[string]struct{}{}}
	for _, h := range DefaultHooks {
		d.register(h)
	}
	for _, h := range extra {
		d.register(h)
	}
	return d
}

func (d *Dispatcher) register(hook string) {
	d.mu.Lock()
	d.hooks[hook] = struct{}{}
	d.mu.Unlock()
}

func (d *Dispatcher) Hooks() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, 0, len(d.hooks))
	for h := range d.hooks {
		out = append(out, h)
	}
	sort.Strings(out)
	return out
}

func (d *Dispatcher) Known(hook string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.hooks[hook]
	return ok
}

// Dispatch applies e and records the outcome in the audit log.
func (d *Dispatcher) Dispatch(ctx context.Context, e capture.Event) (lifecycle.Summary, error) {
	if !d.Known(e.Hook) {
		return lifecycle.Summary{}, fmt.Errorf("%q: %w", e.Hook, ErrUnknownHook)
	}
	sum, err := d.applier.Apply(ctx, e)
	if err != nil {
		d.log.Warn("completion event rejected", "hook", e.Hook, "user_id", e.UserID, "quiz_id", e.QuizID, "error", err)
		d.record(ctx, e, map[string]any{"error": err.Error()})
		return lifecycle.Summary{}, err
	}
	d.record(ctx, e, sum)
	return sum, nil
}

func (d *Dispatcher) record(ctx context.Context, e capture.Event, outcome any) {
	if d.audit == nil {
		return
	}
	b, err := json.Marshal(outcome)
	if err != nil {
		d.log.Error("encode audit entry", "error", err)
		return
	}
	entry := eventlog.Entry{
		Hook:     e.Hook,
		Key:      fmt.Sprintf("%s:%d", e.UserID, e.QuizID),
		DataJSON: string(b),
	}
	if err := d.audit.Append(ctx, entry); err != nil {
		d.log.Error("append audit entry", "hook", e.Hook, "error", err)
	}
}
