package channel

import (
	"context"
	"fmt"
	"math/rand"
	"sync/atomic"

	"github.com/pkg/errors"

	"cspx/log"
	"cspx/metrics"
)

type OpKind int

const (
	opInvalid OpKind = iota
	OpTake
	OpPut
)

func (k OpKind) String() string {
	switch k {
	case OpTake:
		return "take"
	case OpPut:
		return "put"
	}
	return fmt.Sprintf("OpKind(%d)", int(k))
}

// Op is one candidate of an alt. Build it with TakeOp or PutOp; the zero Op
// is invalid.
type Op[E any] struct {
	kind  OpKind
	ch    *Chan[E]
	value E
}

func TakeOp[E any](c *Chan[E]) Op[E] {
	return Op[E]{kind: OpTake, ch: c}
}

func PutOp[E any](c *Chan[E], v E) Op[E] {
	return Op[E]{kind: OpPut, ch: c, value: v}
}

func (o Op[E]) Kind() OpKind {
	return o.kind
}

func (o Op[E]) Channel() *Chan[E] {
	return o.ch
}

type ResultKind int

const (
	NoResult ResultKind = iota
	TakeResult
	PutResult
)

func (k ResultKind) String() string {
	switch k {
	case NoResult:
		return "none"
	case TakeResult:
		return "take"
	case PutResult:
		return "put"
	}
	return fmt.Sprintf("ResultKind(%d)", int(k))
}

// Outcome is the single operation an alt committed to. For a TakeResult,
// Closed means the channel was closed and drained and Value is the zero value.
type Outcome[E any] struct {
	Kind    ResultKind
	Index   int
	Channel *Chan[E]
	Value   E
	Closed  bool
}

// Rand picks the winner in fair mode. It must be safe for the goroutines
// that share it.
type Rand interface {
	Intn(n int) int
}

type globalRand struct{}

func (globalRand) Intn(n int) int {
	return rand.Intn(n)
}

type Config struct {
	// Priority makes the lowest-index ready op win; otherwise the winner is
	// drawn uniformly from the ready ops.
	Priority bool
	// Default makes alt return NoResult instead of blocking when nothing is
	// ready.
	Default bool
	Rand    Rand
	Logger  log.Logger
}

func NewConfig() *Config {
	return &Config{
		Rand:   globalRand{},
		Logger: log.Default(),
	}
}

// Alt commits to exactly one ready op, blocking until one is ready unless
// defaultOption is set.
func Alt[E any](ops []Op[E], priority, defaultOption bool) (Outcome[E], error) {
	cfg := NewConfig()
	cfg.Priority = priority
	cfg.Default = defaultOption
	return AltContext(context.Background(), ops, cfg)
}

// AltContext is Alt with cancellation and an explicit config. A nil cfg
// means NewConfig().
func AltContext[E any](ctx context.Context, ops []Op[E], cfg *Config) (Outcome[E], error) {
	if cfg == nil {
		cfg = NewConfig()
	}
	for i, op := range ops {
		if op.ch == nil || (op.kind != OpTake && op.kind != OpPut) {
			metrics.ObserveAlt(cfg.Priority, metrics.ResultInvalid)
			return noOutcome[E](), errors.Wrapf(ErrInvalidOperation, "op %d (%s)", i, op.kind)
		}
	}
	s := &selector[E]{
		ops:      ops,
		priority: cfg.Priority,
		dflt:     cfg.Default,
		rnd:      cfg.Rand,
		logger:   cfg.Logger,
		ready:    make([]int, 0, len(ops)),
	}
	if s.rnd == nil {
		s.rnd = globalRand{}
	}
	if s.logger == nil {
		s.logger = log.Default()
	}
	s.token.reset()
	return s.run(ctx)
}

func noOutcome[E any]() Outcome[E] {
	return Outcome[E]{Kind: NoResult, Index: -1}
}

const tokenPending = -1

// commitToken resolves once per alt, from pending to the winning index.
type commitToken struct {
	v atomic.Int64
}

func (t *commitToken) reset() {
	t.v.Store(tokenPending)
}

func (t *commitToken) resolve(i int) bool {
	return t.v.CompareAndSwap(tokenPending, int64(i))
}

func (t *commitToken) winner() int {
	return int(t.v.Load())
}

type selector[E any] struct {
	ops      []Op[E]
	priority bool
	dflt     bool
	rnd      Rand
	logger   log.Logger

	token commitToken
	ready []int
	w     *waiter
}

func (s *selector[E]) run(ctx context.Context) (Outcome[E], error) {
	defer s.unregister()
	for {
		s.peek()
		if len(s.ready) > 0 {
			i := s.pick()
			if out, ok := s.commit(i); ok {
				s.logger.Trace("alt committed op %d (%s on %s) out of %d ready", i, s.ops[i].kind, s.ops[i].ch, len(s.ready))
				metrics.ObserveAlt(s.priority, altResult(out))
				return out, nil
			}
			// another party claimed it between peek and commit
			metrics.AltRetries.Inc()
			continue
		}
		if s.dflt {
			s.logger.Trace("alt: none of %d ops ready, taking default", len(s.ops))
			metrics.ObserveAlt(s.priority, metrics.ResultDefault)
			return noOutcome[E](), nil
		}
		if s.w == nil {
			// registration happens in the next peek, under each channel's lock
			s.w = newWaiter()
			continue
		}
		if err := s.w.park(ctx); err != nil {
			s.logger.Debug("alt over %d ops cancelled: %v", len(s.ops), err)
			metrics.ObserveAlt(s.priority, metrics.ResultCancelled)
			return noOutcome[E](), cancelled(err, "alt")
		}
	}
}

// peek collects the ready set holding one channel lock at a time.
func (s *selector[E]) peek() {
	s.ready = s.ready[:0]
	for i := range s.ops {
		if s.ops[i].ch.peek(s.ops[i].kind, s.w) {
			s.ready = append(s.ready, i)
		}
	}
}

func (s *selector[E]) pick() int {
	if s.priority || len(s.ready) == 1 {
		return s.ready[0]
	}
	return s.ready[s.rnd.Intn(len(s.ready))]
}

// commit performs the one real take or put for op i. It fails only if the
// readiness seen by peek was lost to a concurrent party.
func (s *selector[E]) commit(i int) (Outcome[E], bool) {
	op := s.ops[i]
	out := Outcome[E]{Index: i, Channel: op.ch}
	switch op.kind {
	case OpTake:
		v, st := op.ch.claimTake()
		if st == StatusEmpty {
			return noOutcome[E](), false
		}
		out.Kind = TakeResult
		out.Value = v
		out.Closed = st == StatusClosed
	case OpPut:
		if !op.ch.claimPut(op.value) {
			return noOutcome[E](), false
		}
		out.Kind = PutResult
		out.Value = op.value
	}
	if !s.token.resolve(i) {
		panic(fmt.Sprintf("channel: alt resolved twice (op %d after op %d)", i, s.token.winner()))
	}
	return out, true
}

func (s *selector[E]) unregister() {
	if s.w == nil {
		return
	}
	for i := range s.ops {
		s.ops[i].ch.unregister(s.w)
	}
}

func altResult[E any](out Outcome[E]) string {
	switch {
	case out.Kind == PutResult:
		return metrics.ResultPut
	case out.Closed:
		return metrics.ResultClosed
	default:
		return metrics.ResultTake
	}
}
