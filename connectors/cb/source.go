// SPDX-License-Identifier: GPL-3.0-or-later

// Package cb implements the circuit-breaker test/verification connector
// (spec.md §4.9): a file-backed [Source] that emits one transactional
// event per line and asserts every emitted id is eventually acked or
// failed within a deadline, plus an in-band [Sink] that turns event
// metadata or payload commands into [conduit.SinkReply] values.
//
// This connector exists to drive and validate the transactional
// flow-control protocol end to end; it is not meant to move real data.
package cb

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/bassosimone/conduit"
)

// DefaultTimeout is the deadline the source waits, after EOF, for
// outstanding acks/fails before declaring failure.
const DefaultTimeout = 10 * time.Second

// SourceConfig configures the CB source. Path is required.
type SourceConfig struct {
	Path          string
	Timeout       time.Duration
	ExpectBatched bool
}

// Result summarizes one run of the source's completion predicate, in the
// vocabulary of spec.md §6's process exit codes: 0 for success, 1 when
// the predicate was not satisfied before Timeout. Acks/Fails/Missing are
// reported ids: 1-based sequence numbers (the Nth line sent), not the
// raw runtime pull id — this is what a human reading stderr expects to
// see, and what spec.md §8's literal scenarios assert against.
type Result struct {
	ExitCode int
	Acks     []uint64
	Fails    []uint64
	Missing  []uint64
}

// Source drives the file per spec.md §4.9. Construct with [NewSource].
type Source struct {
	cfg     SourceConfig
	timeNow func() time.Time

	mu       sync.Mutex
	lines    []string
	idx      int
	numSent  uint64 // count of Data replies emitted so far
	eof      bool
	acks     map[uint64]struct{} // keyed by raw (0-based) pull id
	fails    map[uint64]struct{}
	triggers int
	restores int

	wake     chan struct{}
	result   *Result
	resultMu sync.Mutex
	done     chan struct{}
}

// NewSource returns a [*Source] for cfg. timeNow defaults to [time.Now]
// when nil.
func NewSource(cfg SourceConfig, timeNow func() time.Time) *Source {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if timeNow == nil {
		timeNow = time.Now
	}
	return &Source{
		cfg:     cfg,
		timeNow: timeNow,
		acks:    make(map[uint64]struct{}),
		fails:   make(map[uint64]struct{}),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

// Connect reads cfg.Path into memory, one entry per line. It is
// idempotent: a repeated call re-reads the file.
func (s *Source) Connect(ctx context.Context, attempt int) (bool, error) {
	f, err := os.Open(s.cfg.Path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), bufio.MaxScanTokenSize)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	s.lines = lines
	s.mu.Unlock()
	return true, nil
}

// PullData returns one Data reply per remaining line. Once every line has
// been sent it returns a single EndStream reply, then blocks on the next
// call until the completion predicate is satisfied or Timeout elapses,
// finally returning Finished.
func (s *Source) PullData(ctx context.Context) (conduit.SourceReply, error) {
	s.mu.Lock()
	if s.idx < len(s.lines) {
		line := s.lines[s.idx]
		s.idx++
		s.numSent++
		s.mu.Unlock()
		return conduit.SourceReply{
			Kind:   conduit.SourceReplyData,
			Bytes:  []byte(line),
			Stream: 1,
			Origin: &conduit.EventOriginUri{Scheme: "tremor-cb", Path: []string{s.cfg.Path}},
		}, nil
	}
	alreadyEOF := s.eof
	s.eof = true
	s.mu.Unlock()

	if !alreadyEOF {
		return conduit.SourceReply{Kind: conduit.SourceReplyEndStream, Stream: 1}, nil
	}

	s.awaitCompletion(ctx)
	return conduit.SourceReply{Kind: conduit.SourceReplyFinished}, nil
}

// Ack records pullID as acked and wakes a pending [Source.awaitCompletion].
func (s *Source) Ack(ctx context.Context, stream conduit.StreamId, pullID uint64) {
	s.mu.Lock()
	s.acks[pullID] = struct{}{}
	s.mu.Unlock()
	s.notify()
}

// Fail records pullID as failed and wakes a pending [Source.awaitCompletion].
func (s *Source) Fail(ctx context.Context, stream conduit.StreamId, pullID uint64) {
	s.mu.Lock()
	s.fails[pullID] = struct{}{}
	s.mu.Unlock()
	s.notify()
}

func (s *Source) notify() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// OnCbOpen counts a circuit-breaker restore: the runtime calls OnCbOpen
// when it receives a [conduit.CbRestore].
func (s *Source) OnCbOpen(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.restores++
}

// OnCbClose counts a circuit-breaker trigger: the runtime calls OnCbClose
// when it receives a [conduit.CbTrigger].
func (s *Source) OnCbClose(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.triggers++
}

// IsTransactional always reports true: every line emitted expects an
// ack or a fail.
func (s *Source) IsTransactional() bool { return true }

// Asynchronous reports false: PullData blocks synchronously, including
// during the post-EOF completion wait.
func (s *Source) Asynchronous() bool { return false }

// OnStop is a no-op; the process-style [Result] is already available by
// the time OnStop runs, since PullData only returns Finished after
// awaitCompletion resolves.
func (s *Source) OnStop(ctx context.Context) {}

// Result returns the outcome once PullData has returned Finished, or nil
// if the run has not completed yet.
func (s *Source) Result() *Result {
	s.resultMu.Lock()
	defer s.resultMu.Unlock()
	return s.result
}

// Done returns a channel closed once Result becomes available.
func (s *Source) Done() <-chan struct{} {
	return s.done
}

// Triggers and Restores report the number of circuit-breaker signals
// observed, for tests asserting CB monotonicity (spec.md §8.4).
func (s *Source) Triggers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.triggers
}

func (s *Source) Restores() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.restores
}

func (s *Source) awaitCompletion(ctx context.Context) {
	timer := time.NewTimer(s.cfg.Timeout)
	defer timer.Stop()

	for {
		if res, ok := s.tryComplete(); ok {
			s.finish(res)
			return
		}
		select {
		case <-ctx.Done():
			s.finish(s.timeoutResult())
			return
		case <-timer.C:
			s.finish(s.timeoutResult())
			return
		case <-s.wake:
			continue
		}
	}
}

// tryComplete evaluates the completion predicate from spec.md §4.9: with
// ExpectBatched, max(acks ∪ fails) == lastSent suffices even if
// intermediate ids are missing; otherwise every sent id must be answered.
func (s *Source) tryComplete() (Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.numSent == 0 {
		return Result{ExitCode: 0}, true
	}

	if s.cfg.ExpectBatched {
		lastSent := s.numSent - 1 // 0-based raw pull id of the last line sent
		var maxSeen uint64
		var sawAny bool
		for id := range s.acks {
			if !sawAny || id > maxSeen {
				maxSeen, sawAny = id, true
			}
		}
		for id := range s.fails {
			if !sawAny || id > maxSeen {
				maxSeen, sawAny = id, true
			}
		}
		if sawAny && maxSeen == lastSent {
			return Result{ExitCode: 0, Acks: reportedIds(s.acks), Fails: reportedIds(s.fails)}, true
		}
		return Result{}, false
	}

	if uint64(len(s.acks)+len(s.fails)) == s.numSent {
		return Result{ExitCode: 0, Acks: reportedIds(s.acks), Fails: reportedIds(s.fails)}, true
	}
	return Result{}, false
}

func (s *Source) timeoutResult() Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	var missing []uint64
	for i := uint64(0); i < s.numSent; i++ {
		_, acked := s.acks[i]
		_, failed := s.fails[i]
		if !acked && !failed {
			missing = append(missing, i+1)
		}
	}
	sort.Slice(missing, func(i, j int) bool { return missing[i] < missing[j] })
	return Result{
		ExitCode: 1,
		Acks:     reportedIds(s.acks),
		Fails:    reportedIds(s.fails),
		Missing:  missing,
	}
}

func (s *Source) finish(res Result) {
	s.resultMu.Lock()
	s.result = &res
	s.resultMu.Unlock()
	close(s.done)
}

// Summary renders a human-readable report of res, in the teacher's
// eprintln-summary style (SPEC_FULL.md §6): a one-line "Expected CB
// events up to id N" message on failure, naming the last sent id by its
// 1-based sequence number, matching spec.md §8's literal scenario.
func (s *Source) Summary(res Result) string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "cb: acks=%v fails=%v\n", res.Acks, res.Fails)
	if res.ExitCode != 0 {
		s.mu.Lock()
		numSent := s.numSent
		s.mu.Unlock()
		fmt.Fprintf(&buf, "Expected CB events up to id %d, missing %v\n", numSent, res.Missing)
	}
	return buf.String()
}

func reportedIds(set map[uint64]struct{}) []uint64 {
	out := make([]uint64, 0, len(set))
	for id := range set {
		out = append(out, id+1)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
