package reactor

// TimerState is the lifecycle of one Scheduler entry.
type TimerState uint8

const (
	// TimerIdle means the entry is not linked into any wheel slot.
	TimerIdle TimerState = iota
	// TimerArmed means the entry is linked and waiting for its fire jiffy.
	TimerArmed
	// TimerFiring means the entry's callback is currently executing (or
	// just returned, pending the reinsert-or-retire decision).
	TimerFiring
)

// TimerHandle is a stable (index, generation) pair into the Scheduler's
// arena, standing in for the raw pointer a pointer-based implementation
// would hand back. A handle whose generation no longer matches the arena
// slot's current generation is stale (the slot was retired and possibly
// reused) and every Scheduler method rejects it with ErrStaleHandle.
type TimerHandle struct {
	Index      uint32
	Generation uint32
}

// TimerCallback is invoked synchronously on the reactor thread when its
// entry fires. Callbacks must not block; a callback that calls Cancel on
// its own handle suppresses reinsertion even for periodic entries.
type TimerCallback func(h TimerHandle)

const (
	nearBits  = 8
	nearSize  = 1 << nearBits
	farBits   = 6
	farSize   = 1 << farBits
	farLevels = 4
)

// timerNode is one arena slot: either free (linked into the Scheduler's
// free list via next) or in use (linked into a wheel slot via prev/next).
type timerNode struct {
	inUse      bool
	generation uint32

	prev, next int32 // arena indices, -1 for none
	level      int8  // -1 = near wheel, 0..3 = far wheel k, -2 = unlinked
	slot       int16

	periodTicks uint32
	repeatCount uint32 // 0 means forever
	fireJiffy   uint32
	state       TimerState
	callback    TimerCallback
}

type slotList struct {
	head, tail int32
}

// Scheduler is a hierarchical timing wheel: one 256-slot near wheel plus
// four cascaded 64-slot far wheels, covering the full 32-bit jiffy space
// before wrapping (256 * 64^4 == 2^32). It schedules one-shot and periodic
// callbacks with O(1) amortized insert and bounded per-tick expiry work.
//
// A Scheduler is owned by exactly one goroutine; none of its methods take a
// lock.
type Scheduler struct {
	intervalMs uint64
	epochMs    uint64
	currentMs  uint64
	jiffies    uint32

	near [nearSize]slotList
	far  [farLevels][farSize]slotList

	arena    []timerNode
	freeHead int32 // index of first free arena slot, -1 if none

	logger Logger
}

// NewScheduler initializes a Scheduler anchored at nowMs with the given
// tick interval (clamped up to 1ms if given as 0).
func NewScheduler(nowMs uint64, intervalMs uint64) *Scheduler {
	if intervalMs < 1 {
		intervalMs = 1
	}
	s := &Scheduler{
		intervalMs: intervalMs,
		epochMs:    nowMs,
		currentMs:  nowMs,
		freeHead:   -1,
		logger:     NewNoOpLogger(),
	}
	for i := range s.near {
		s.near[i] = slotList{-1, -1}
	}
	for k := range s.far {
		for i := range s.far[k] {
			s.far[k][i] = slotList{-1, -1}
		}
	}
	return s
}

// SetLogger installs a structured logger for scheduler diagnostics.
func (s *Scheduler) SetLogger(l Logger) {
	if l == nil {
		l = NewNoOpLogger()
	}
	s.logger = l
}

func (s *Scheduler) allocNode() int32 {
	if s.freeHead != -1 {
		idx := s.freeHead
		node := &s.arena[idx]
		s.freeHead = node.next
		node.inUse = true
		node.prev, node.next = -1, -1
		node.level = -2
		return idx
	}
	s.arena = append(s.arena, timerNode{inUse: true, prev: -1, next: -1, level: -2, generation: 1})
	return int32(len(s.arena) - 1)
}

func (s *Scheduler) retire(idx int32) {
	node := &s.arena[idx]
	node.inUse = false
	node.callback = nil
	node.generation++
	node.prev = -1
	node.next = s.freeHead
	node.level = -2
	s.freeHead = idx
}

func (s *Scheduler) lookup(h TimerHandle) (*timerNode, error) {
	if h.Index >= uint32(len(s.arena)) {
		return nil, wrapf(ErrStaleHandle, "timer handle index %d out of range", h.Index)
	}
	node := &s.arena[h.Index]
	if !node.inUse || node.generation != h.Generation {
		return nil, wrapf(ErrStaleHandle, "timer handle %+v is stale", h)
	}
	return node, nil
}

func (s *Scheduler) slotFor(level int8, idx int16) *slotList {
	if level < 0 {
		return &s.near[idx]
	}
	return &s.far[level][idx]
}

func (s *Scheduler) linkTail(level int8, idx int16, nodeIdx int32) {
	list := s.slotFor(level, idx)
	node := &s.arena[nodeIdx]
	node.level, node.slot = level, idx
	node.prev = list.tail
	node.next = -1
	if list.tail != -1 {
		s.arena[list.tail].next = nodeIdx
	} else {
		list.head = nodeIdx
	}
	list.tail = nodeIdx
}

func (s *Scheduler) unlink(nodeIdx int32) {
	node := &s.arena[nodeIdx]
	if node.level == -2 {
		return
	}
	list := s.slotFor(node.level, node.slot)
	if node.prev != -1 {
		s.arena[node.prev].next = node.next
	} else {
		list.head = node.next
	}
	if node.next != -1 {
		s.arena[node.next].prev = node.prev
	} else {
		list.tail = node.prev
	}
	node.prev, node.next = -1, -1
	node.level = -2
}

// bucketFor computes which wheel slot an entry with the given fireJiffy
// belongs in, given the scheduler's current jiffies. delta is the entry's
// remaining tick count.
func bucketFor(fireJiffy, jiffies uint32) (level int8, idx int16) {
	delta := fireJiffy - jiffies
	switch {
	case delta < nearSize:
		return -1, int16(fireJiffy & (nearSize - 1))
	case delta < nearSize*farSize:
		return 0, int16((fireJiffy >> nearBits) & (farSize - 1))
	case delta < nearSize*farSize*farSize:
		return 1, int16((fireJiffy >> (nearBits + farBits)) & (farSize - 1))
	case delta < nearSize*farSize*farSize*farSize:
		return 2, int16((fireJiffy >> (nearBits + 2*farBits)) & (farSize - 1))
	default:
		return 3, int16((fireJiffy >> (nearBits + 3*farBits)) & (farSize - 1))
	}
}

func (s *Scheduler) insertByFireJiffy(nodeIdx int32) {
	node := &s.arena[nodeIdx]
	level, idx := bucketFor(node.fireJiffy, s.jiffies)
	s.linkTail(level, idx, nodeIdx)
}

// ticksFor converts a period in milliseconds to ticks, rounding periods
// shorter than one interval up to a single tick.
func (s *Scheduler) ticksFor(periodMs uint64) uint32 {
	ticks := periodMs / s.intervalMs
	if ticks == 0 {
		ticks = 1
	}
	return uint32(ticks)
}

// Arm schedules cb to run every periodMs (truncated to whole ticks, with a
// minimum of one tick),
// repeatCount times (0 means forever). It returns a stable handle usable
// with Cancel, Rearm, and State.
func (s *Scheduler) Arm(periodMs uint64, repeatCount uint32, cb TimerCallback) (TimerHandle, error) {
	if cb == nil {
		return TimerHandle{}, wrapf(ErrMalformed, "nil timer callback")
	}
	idx := s.allocNode()
	node := &s.arena[idx]
	node.periodTicks = s.ticksFor(periodMs)
	node.repeatCount = repeatCount
	node.callback = cb
	node.fireJiffy = s.jiffies + node.periodTicks
	node.state = TimerArmed
	s.insertByFireJiffy(idx)
	return TimerHandle{Index: uint32(idx), Generation: node.generation}, nil
}

// Rearm cancels any pending fire of h and reschedules it with a new period
// and repeat count, keeping the same handle and callback (or replacing the
// callback if cb is non-nil). Re-arming an already-armed entry first
// cancels it silently, matching the original wheel's semantics.
func (s *Scheduler) Rearm(h TimerHandle, periodMs uint64, repeatCount uint32, cb TimerCallback) error {
	node, err := s.lookup(h)
	if err != nil {
		return err
	}
	if node.state == TimerArmed {
		s.unlink(h.Index)
	}
	if cb != nil {
		node.callback = cb
	}
	node.periodTicks = s.ticksFor(periodMs)
	node.repeatCount = repeatCount
	node.fireJiffy = s.jiffies + node.periodTicks
	node.state = TimerArmed
	s.insertByFireJiffy(int32(h.Index))
	return nil
}

// Cancel stops h from firing again. Cancelling a handle from inside its own
// callback (state Firing) is well-defined and suppresses reinsertion/periodic
// reschedule; a second Cancel before that callback returns is a no-op. A
// timer that has finished or been cancelled is retired, so a later Cancel
// with its handle returns ErrStaleHandle.
func (s *Scheduler) Cancel(h TimerHandle) error {
	node, err := s.lookup(h)
	if err != nil {
		return err
	}
	switch node.state {
	case TimerIdle:
		return nil
	case TimerArmed:
		s.unlink(h.Index)
		node.state = TimerIdle
		s.retire(int32(h.Index))
		return nil
	default: // TimerFiring
		node.state = TimerIdle
		return nil
	}
}

// State reports the current lifecycle state of h.
func (s *Scheduler) State(h TimerHandle) (TimerState, error) {
	node, err := s.lookup(h)
	if err != nil {
		return 0, err
	}
	return node.state, nil
}

// cascade re-buckets every entry in far wheel level's current slot into a
// nearer wheel (or, rarely, the same level if it somehow still qualifies),
// then recurses into level+1 only if that slot's index is also 0 (the
// wheel wrapped).
func (s *Scheduler) cascade(level int8) {
	if int(level) >= farLevels {
		return
	}
	shift := uint(nearBits + farBits*int(level))
	idx := int16((s.jiffies >> shift) & (farSize - 1))

	list := &s.far[level][idx]
	head := list.head
	*list = slotList{-1, -1}

	for cur := head; cur != -1; {
		next := s.arena[cur].next
		s.arena[cur].prev, s.arena[cur].next = -1, -1
		s.arena[cur].level = -2
		s.insertByFireJiffy(cur)
		cur = next
	}

	if idx == 0 {
		s.cascade(level + 1)
	}
}

// tick advances jiffies by exactly one and dispatches every entry due at
// the new jiffy count.
func (s *Scheduler) tick() {
	s.jiffies++
	idx := s.jiffies & (nearSize - 1)
	if idx == 0 {
		s.cascade(0)
	}

	list := &s.near[idx]
	head := list.head
	*list = slotList{-1, -1}

	for cur := head; cur != -1; {
		node := &s.arena[cur]
		next := node.next
		node.prev, node.next = -1, -1
		node.level = -2
		node.state = TimerFiring

		handle := TimerHandle{Index: uint32(cur), Generation: node.generation}
		cb := node.callback
		if cb != nil {
			cb(handle)
		}

		// Re-fetch: a reentrant Arm call during cb may have grown s.arena,
		// invalidating the node pointer captured before the call.
		node = &s.arena[cur]
		switch node.state {
		case TimerFiring:
			// Still in the state tick() set before the callback ran: neither
			// Cancel nor Rearm touched it, so apply the ordinary
			// repeat/retire decision.
			if node.repeatCount == 0 {
				node.fireJiffy = s.jiffies + node.periodTicks
				s.insertByFireJiffy(cur)
				node.state = TimerArmed
			} else {
				node.repeatCount--
				if node.repeatCount > 0 {
					node.fireJiffy = s.jiffies + node.periodTicks
					s.insertByFireJiffy(cur)
					node.state = TimerArmed
				} else {
					node.state = TimerIdle
					s.retire(cur)
				}
			}
		case TimerArmed:
			// Rearm was called reentrantly from within this callback: the
			// node is already correctly relinked into its new wheel slot.
			// Nothing to do here.
		default:
			// TimerIdle: Cancel was called reentrantly from within this
			// callback (its firing-branch only flips state, leaving the
			// retire to us, since the node is unlinked at this point).
			s.retire(cur)
		}

		cur = next
	}
}

// Advance drives the scheduler forward to nowMs, executing exactly one
// tick step per elapsed interval. Every entry whose fire jiffy is now <=
// the scheduler's jiffy count has been dispatched (or reinserted, for
// periodic entries with repeats remaining).
func (s *Scheduler) Advance(nowMs uint64) {
	if nowMs < s.currentMs {
		return
	}
	// jiffies is a wrapping 32-bit counter, so the tick delta is taken
	// modulo 2^32 as well.
	elapsedTicks := uint32((nowMs-s.epochMs)/s.intervalMs) - s.jiffies
	for i := uint32(0); i < elapsedTicks; i++ {
		s.tick()
	}
	s.currentMs = nowMs
}

// NextFireMs returns an absolute millisecond timestamp no later than the
// earliest armed entry's fire time, and false if nothing is armed. The
// nearest occupied near-wheel slot gives an exact delay; the nearest
// occupied slot of each far wheel gives the start of the span it covers.
// The smallest of these is returned, so the result is exact when the
// earliest entry sits in the near wheel and may be early (never late) when
// a far-wheel slot is the nearest candidate.
func (s *Scheduler) NextFireMs() (uint64, bool) {
	var best uint64
	found := false
	for d := uint32(1); d <= nearSize; d++ {
		idx := (s.jiffies + d) & (nearSize - 1)
		if s.near[idx].head != -1 {
			best, found = uint64(d), true
			break
		}
	}

	for level := int8(0); int(level) < farLevels; level++ {
		unit := uint64(nearSize)
		for k := int8(0); k < level; k++ {
			unit *= farSize
		}
		shift := uint(nearBits + farBits*int(level))
		base := (s.jiffies >> shift) & (farSize - 1)
		for d := uint32(1); d <= farSize; d++ {
			idx := (base + d) & (farSize - 1)
			if s.far[level][idx].head != -1 {
				// The slot spans `unit` ticks; report the earliest
				// instant inside it as a conservative (never-too-late)
				// estimate for callers sizing a poller wait timeout.
				delayTicks := (uint64(d) - 1) * unit
				if delayTicks == 0 {
					delayTicks = 1
				}
				if !found || delayTicks < best {
					best, found = delayTicks, true
				}
				break
			}
		}
	}

	if !found {
		return 0, false
	}
	return s.currentMs + best*s.intervalMs, true
}
