package collect

import (
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Collector drives context collection for one debug session and owns the
// latest-result store. A collector is safe for concurrent use; concurrent
// collections of the same kind are serialized only at the store, where
// generation tokens keep a stale collection from overwriting a newer one.
type Collector struct {
	budgetsMu sync.RWMutex
	budgets   Budgets

	navigator SourceNavigator
	languages *LanguageRegistry
	logger    *slog.Logger
	store     latestStore
}

// Option configures a Collector.
type Option func(*Collector)

// WithNavigator sets the source navigator used by stack collection.
func WithNavigator(nav SourceNavigator) Option {
	return func(c *Collector) {
		c.navigator = nav
	}
}

// WithLanguages replaces the default language capability registry.
func WithLanguages(reg *LanguageRegistry) Option {
	return func(c *Collector) {
		c.languages = reg
	}
}

// WithLogger sets the logger. Logging defaults to discard.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Collector) {
		c.logger = logger
	}
}

// NewCollector creates a collector with the given budgets.
func NewCollector(budgets Budgets, opts ...Option) *Collector {
	c := &Collector{
		budgets:   budgets,
		languages: NewLanguageRegistry(),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Budgets returns the current collection budgets.
func (c *Collector) Budgets() Budgets {
	c.budgetsMu.RLock()
	defer c.budgetsMu.RUnlock()
	return c.budgets
}

// SetBudgets replaces the collection budgets. Collections already in flight
// keep the budgets they started with.
func (c *Collector) SetBudgets(budgets Budgets) {
	c.budgetsMu.Lock()
	c.budgets = budgets
	c.budgetsMu.Unlock()
}

// CollectStack walks the backend's frame list into a bounded stack context
// and invokes onDone exactly once.
func (c *Collector) CollectStack(src StackSource, onDone func(ContextItem)) {
	requestID := uuid.NewString()
	budgets := c.Budgets()
	gen := c.store.begin(KindStack)

	if src == nil {
		onDone(ContextItem{Kind: KindStack, RequestID: requestID})
		return
	}

	src.FramesFrom(0, func(frames []Frame, err error) {
		if err != nil {
			c.logger.Debug("stack collection failed", "request", requestID, "error", err)
			onDone(ContextItem{Kind: KindStack, RequestID: requestID})
			return
		}

		items := collectStackItems(frames, c.navigator, budgets)
		c.store.putStack(gen, items)
		onDone(ContextItem{Kind: KindStack, Success: true, RequestID: requestID, Stack: items})
	})
}

// CollectSnapshot walks the frame's locals into a bounded snapshot tree and
// invokes onDone exactly once.
func (c *Collector) CollectSnapshot(frame Frame, onDone func(ContextItem)) {
	requestID := uuid.NewString()
	if frame == nil {
		onDone(ContextItem{Kind: KindSnapshot, RequestID: requestID})
		return
	}

	c.collectSnapshot(frame, requestID, onDone)
}

// collectSnapshot runs the bounded tree walk for a frame. It is shared by
// CollectSnapshot and the exception collector's fallback path.
func (c *Collector) collectSnapshot(frame Frame, requestID string, onDone func(ContextItem)) {
	budgets := c.Budgets()
	gen := c.store.begin(KindSnapshot)

	walker := newTreeWalker(budgets)
	root := newItemBuilder("", ItemLocal)

	walker.walk(frame.Locals(), root, 0, func() {
		items := TrimToSize(root.finalize().Children, budgets.MaxSnapshotBytes)
		success := !walker.Failed()

		if success {
			c.store.putSnapshot(gen, items)
		} else {
			c.logger.Debug("snapshot collection failed", "request", requestID, "partial", len(items))
		}

		onDone(ContextItem{Kind: KindSnapshot, Success: success, RequestID: requestID, Snapshot: items})
	})
}

// CollectException detects and assembles the active exception from the
// frame's direct children, invoking onDone exactly once. When no candidate
// is found the frame is collected as an ordinary snapshot and the result is
// labeled Snapshot rather than Exception.
func (c *Collector) CollectException(frame Frame, onDone func(ContextItem)) {
	requestID := uuid.NewString()
	if frame == nil {
		onDone(ContextItem{Kind: KindException, RequestID: requestID})
		return
	}

	budgets := c.Budgets()
	gen := c.store.begin(KindException)

	pos, _ := frame.SourcePosition()
	caps, _ := c.languages.Lookup(LanguageHint(pos.FilePath))

	deliver := func(detail ExceptionDetail) {
		c.store.putException(gen, detail)
		onDone(ContextItem{Kind: KindException, Success: true, RequestID: requestID, Exception: &detail})
	}

	frame.Locals().Children(func(children []NamedValue, err error) {
		if err != nil {
			c.logger.Debug("exception collection failed", "request", requestID, "error", err)
			onDone(ContextItem{Kind: KindException, RequestID: requestID})
			return
		}

		// Name heuristics first: a binding named like an exception beats
		// any same-level type-only signal.
		if idx := detectCandidateByName(children, caps); idx >= 0 {
			cand := children[idx]
			cand.Value.Presentation(func(p Presentation, perr error) {
				if perr != nil {
					p = Presentation{}
				}
				assembleException(cand, p, pos, budgets, caps, deliver)
			})
			return
		}

		if len(children) == 0 {
			c.collectSnapshot(frame, requestID, onDone)
			return
		}

		// Type heuristics: resolve every child's presentation, then pick
		// the first in backend order whose type mentions an exception.
		presentations := make([]Presentation, len(children))
		resolved := make([]bool, len(children))

		join := NewJoin(len(children), func() {
			for i := range children {
				if resolved[i] && matchesExceptionType(presentations[i].TypeName) {
					assembleException(children[i], presentations[i], pos, budgets, caps, deliver)
					return
				}
			}
			c.collectSnapshot(frame, requestID, onDone)
		})

		for i, child := range children {
			i, child := i, child
			child.Value.Presentation(func(p Presentation, perr error) {
				if perr == nil {
					presentations[i] = p
					resolved[i] = true
				}
				join.Complete()
			})
		}
	})
}

// LatestStack returns an independent copy of the latest collected stack.
func (c *Collector) LatestStack() []StackItem {
	return c.store.latestStack()
}

// LatestSnapshot returns an independent copy of the latest collected
// snapshot.
func (c *Collector) LatestSnapshot() []SnapshotItem {
	return c.store.latestSnapshot()
}

// LatestException returns the latest assembled exception detail.
func (c *Collector) LatestException() (ExceptionDetail, bool) {
	return c.store.latestException()
}

// Clear resets all three result slots. It is invoked on session end; any
// collection still in flight will not repopulate the cleared slots.
func (c *Collector) Clear() {
	c.store.clear()
}
