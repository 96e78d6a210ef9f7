package dispatch

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"botloop/pkg/event"
)

// MessageHandler processes one conversational message.
type MessageHandler func(ctx context.Context, msg *event.Message) error

// UpdateHandler processes one non-conversational update of a registered kind.
type UpdateHandler func(ctx context.Context, upd *event.Update) error

// Prehandler observes every conversational message before routing. It runs
// synchronously and cannot influence which handler is resolved.
type Prehandler func(msg *event.Message)

// Predicate gates a static handler on arbitrary message state.
type Predicate func(msg *event.Message) bool

// route is one registered static handler with its match conditions.
type route struct {
	fn           MessageHandler
	contentTypes map[event.ContentType]struct{}
	commands     []*regexp.Regexp
	pattern      *regexp.Regexp
	predicate    Predicate
}

// MessageOption customizes a static handler registration.
type MessageOption func(*route) error

// WithCommands restricts the handler to messages whose command token matches
// one of the given patterns. Patterns anchor at the start and get a "$"
// appended when absent, so "start" matches "/start" but not "/started".
func WithCommands(patterns ...string) MessageOption {
	return func(rt *route) error {
		for _, pattern := range patterns {
			if !strings.HasSuffix(pattern, "$") {
				pattern += "$"
			}
			re, err := regexp.Compile("^" + pattern)
			if err != nil {
				return fmt.Errorf("compile command pattern %q: %w", pattern, err)
			}
			rt.commands = append(rt.commands, re)
		}
		return nil
	}
}

// WithPattern matches the handler when the message text contains a match.
func WithPattern(expr string) MessageOption {
	return func(rt *route) error {
		re, err := regexp.Compile(expr)
		if err != nil {
			return fmt.Errorf("compile pattern %q: %w", expr, err)
		}
		rt.pattern = re
		return nil
	}
}

// WithPredicate matches the handler when the predicate reports true.
func WithPredicate(p Predicate) MessageOption {
	return func(rt *route) error {
		rt.predicate = p
		return nil
	}
}

// WithContentTypes replaces the default {text} content-type set.
func WithContentTypes(types ...event.ContentType) MessageOption {
	return func(rt *route) error {
		rt.contentTypes = make(map[event.ContentType]struct{}, len(types))
		for _, ct := range types {
			rt.contentTypes[ct] = struct{}{}
		}
		return nil
	}
}

// Registry holds the static handler list, prehandlers, and per-kind handlers.
//
// Registration is expected to finish before polling starts; steady-state
// dispatch reads the registry without locking.
type Registry struct {
	routes       []*route
	prehandlers  []Prehandler
	kindHandlers map[event.Kind]UpdateHandler
}

func NewRegistry() *Registry {
	return &Registry{
		kindHandlers: make(map[event.Kind]UpdateHandler),
	}
}

// RegisterMessageHandler appends a static handler. Registration order is the
// tie-break for matching: first registered wins.
func (r *Registry) RegisterMessageHandler(fn MessageHandler, opts ...MessageOption) error {
	if fn == nil {
		return fmt.Errorf("message handler is required")
	}

	rt := &route{
		fn:           fn,
		contentTypes: map[event.ContentType]struct{}{event.ContentText: {}},
	}
	for _, opt := range opts {
		if err := opt(rt); err != nil {
			return err
		}
	}

	r.routes = append(r.routes, rt)
	return nil
}

// RegisterPrehandler appends a prehandler; prehandlers run in registration
// order for every conversational message.
func (r *Registry) RegisterPrehandler(fn Prehandler) {
	if fn == nil {
		return
	}
	r.prehandlers = append(r.prehandlers, fn)
}

// SetKindHandler installs the single handler for a non-conversational kind,
// silently replacing any previous one.
func (r *Registry) SetKindHandler(kind event.Kind, fn UpdateHandler) error {
	switch kind {
	case event.KindInlineQuery, event.KindChosenInlineResult, event.KindCallbackQuery, event.KindChannelPost:
	default:
		return fmt.Errorf("kind %s does not take a kind handler", kind)
	}

	if fn == nil {
		delete(r.kindHandlers, kind)
		return nil
	}
	r.kindHandlers[kind] = fn
	return nil
}

func (r *Registry) kindHandler(kind event.Kind) (UpdateHandler, bool) {
	fn, ok := r.kindHandlers[kind]
	return fn, ok
}

// matches reports whether this route accepts the message.
//
// A route that declares commands is decided by the command test alone: when
// the message yields no command token, or no declared command matches, the
// route is skipped without consulting its own pattern or predicate.
func (rt *route) matches(msg *event.Message) bool {
	if _, ok := rt.contentTypes[msg.ContentType]; !ok {
		return false
	}

	isText := msg.ContentType == event.ContentText

	if len(rt.commands) > 0 {
		if !isText {
			return false
		}
		cmd, ok := ExtractCommand(msg.Text)
		if !ok {
			return false
		}
		for _, re := range rt.commands {
			if re.MatchString(cmd) {
				return true
			}
		}
		return false
	}

	if rt.pattern != nil && isText && rt.pattern.MatchString(msg.Text) {
		return true
	}
	if rt.predicate != nil && rt.predicate(msg) {
		return true
	}
	return false
}
