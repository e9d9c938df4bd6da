package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/EimisPacheco/pixie/internal/domain"
)

const defaultDedupeLimit = 128

// Dispatch outcomes, used as metric labels.
const (
	toolOutcomeOK        = "ok"
	toolOutcomeError     = "error"
	toolOutcomeUnknown   = "unknown"
	toolOutcomeDiscarded = "discarded"
)

// errSessionClosed tells the dispatcher a handler finished after the
// session ended; its result must be discarded, not sent.
var errSessionClosed = errors.New("session closed before the tool result could be applied")

// ToolHandler executes one named tool. The returned string is spoken
// back to the user; on error it carries the user-facing failure message
// instead of the raw error text.
type ToolHandler func(ctx context.Context, params map[string]any) (string, error)

// toolDispatcher maps tool invocations onto a fixed handler registry.
type toolDispatcher struct {
	handlers map[string]ToolHandler
	names    []string
}

func newToolDispatcher(handlers map[string]ToolHandler) *toolDispatcher {
	names := make([]string, 0, len(handlers))
	for name := range handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return &toolDispatcher{handlers: handlers, names: names}
}

// Execute runs the named handler and wraps its outcome in a ToolResult.
// The second return value is the dispatch outcome label.
func (d *toolDispatcher) Execute(ctx context.Context, inv domain.ToolInvocation) (domain.ToolResult, string) {
	handler, ok := d.handlers[inv.Name]
	if !ok {
		return domain.ToolResult{
			CallID:  inv.CallID,
			Success: false,
			Payload: fmt.Sprintf("Unknown tool %q. Available tools: %s.", inv.Name, strings.Join(d.names, ", ")),
		}, toolOutcomeUnknown
	}

	payload, err := handler(ctx, inv.Parameters)
	switch {
	case errors.Is(err, errSessionClosed):
		return domain.ToolResult{}, toolOutcomeDiscarded
	case err != nil:
		if payload == "" {
			payload = fmt.Sprintf("The %s tool failed.", inv.Name)
		}
		return domain.ToolResult{CallID: inv.CallID, Success: false, Payload: payload}, toolOutcomeError
	}
	return domain.ToolResult{CallID: inv.CallID, Success: true, Payload: payload}, toolOutcomeOK
}

// callIDSet tracks which invocation ids were already dispatched. It is
// bounded: once the limit is exceeded the oldest ids are evicted, so a
// very long session cannot grow it without end.
type callIDSet struct {
	mu    sync.Mutex
	limit int
	order []string
	seen  map[string]struct{}
}

func newCallIDSet(limit int) *callIDSet {
	if limit < 1 {
		limit = defaultDedupeLimit
	}
	return &callIDSet{limit: limit, seen: make(map[string]struct{}, limit)}
}

// Observe reports whether the id is new. Repeats return false and must
// be dropped silently, with no second dispatch and no second result.
func (s *callIDSet) Observe(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.seen[id]; dup {
		return false
	}
	s.seen[id] = struct{}{}
	s.order = append(s.order, id)
	for len(s.order) > s.limit {
		delete(s.seen, s.order[0])
		s.order = s.order[1:]
	}
	return true
}
