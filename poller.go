package reactor

import (
	"sync"
)

// ReadinessMask is a set over {READ, WRITE, ERROR}. It is the only type
// registration, delivery, and filtering operate on.
type ReadinessMask uint8

const (
	// EventRead indicates the file descriptor is ready for reading.
	EventRead ReadinessMask = 1 << iota
	// EventWrite indicates the file descriptor is ready for writing.
	EventWrite
	// EventError indicates an error condition on the file descriptor.
	EventError
)

// Backend selects the underlying kernel poll mechanism. Auto picks the
// highest-ranked backend compiled for the host OS; every other value
// requests that specific backend, failing NewPoller if it wasn't compiled
// in.
type Backend int

const (
	Auto Backend = iota
	Select
	Poll
	Epoll
	Kqueue
	DevPoll
	PollSet
)

func (b Backend) String() string {
	switch b {
	case Auto:
		return "auto"
	case Select:
		return "select"
	case Poll:
		return "poll"
	case Epoll:
		return "epoll"
	case Kqueue:
		return "kqueue"
	case DevPoll:
		return "devpoll"
	case PollSet:
		return "pollset"
	default:
		return "unknown"
	}
}

// Event is one readiness notification: Mask is always a subset of the mask
// most recently registered for Fd, and is never the empty set.
type Event struct {
	Fd     int
	Mask   ReadinessMask
	Cookie uintptr
}

// HandleState is the lifecycle of a Poller. A Poller starts in HandleActive
// and moves to HandleClosed on Destroy; HandleCreated is not used by it.
// Grounded on the teacher's FastState design, simplified for the
// single-threaded core: no CAS is needed because every handle is owned by
// exactly one goroutine.
type HandleState uint8

const (
	// HandleCreated indicates the handle was constructed but not yet used.
	HandleCreated HandleState = iota
	// HandleActive indicates the handle is in normal use.
	HandleActive
	// HandleClosed indicates Destroy has been called; all further
	// operations fail with ErrClosed.
	HandleClosed
)

// backendEvent is a raw (fd, observed) pair as reported by a kernel poll
// mechanism, before Poller applies mask filtering and stale-fd recovery.
type backendEvent struct {
	fd   int
	mask ReadinessMask
}

// pollerBackend is the uniform operation set each concrete kernel mechanism
// (epoll, kqueue, /dev/poll, pollset, poll, select) implements. Poller is
// the only caller; it owns the desired-mask/cookie table and enforces the
// observed ⊆ desired invariant so backends don't have to agree on exactly
// what their kernel reports.
type pollerBackend interface {
	open(hint int) error
	close() error
	add(fd int, mask ReadinessMask) error
	modify(fd int, mask ReadinessMask) error
	remove(fd int) error
	wait(timeoutMs int, events []backendEvent) (int, error)
	edgeTriggered() bool
}

type backendFactory struct {
	kind Backend
	rank int
	new  func() pollerBackend
}

var (
	registryMu      sync.Mutex
	registeredKinds []backendFactory
)

// registerBackend is called from each platform file's init() to add a
// compiled-in backend to the selection table used by Auto.
func registerBackend(kind Backend, rank int, ctor func() pollerBackend) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registeredKinds = append(registeredKinds, backendFactory{kind: kind, rank: rank, new: ctor})
}

func lookupBackend(kind Backend) (backendFactory, bool) {
	registryMu.Lock()
	defer registryMu.Unlock()
	var best backendFactory
	found := false
	for _, f := range registeredKinds {
		if kind == Auto {
			if !found || f.rank > best.rank {
				best, found = f, true
			}
			continue
		}
		if f.kind == kind {
			return f, true
		}
	}
	return best, found
}

// fdEntry is the Poller's per-descriptor registration record: desired mask
// plus the opaque cookie returned verbatim with every event.
type fdEntry struct {
	mask   ReadinessMask
	cookie uintptr
	active bool
}

// maxTrackedFD bounds the dense per-fd table's growth; descriptors beyond
// it are rejected with ErrBadDescriptor rather than growing unboundedly.
const maxTrackedFD = 1 << 20

// Poller is a portable event-poll abstraction over select, poll, epoll,
// kqueue, /dev/poll, and pollset. It owns a dense per-fd table mapping
// descriptor to {desired mask, cookie} and guarantees every delivered Event
// satisfies Mask ⊆ desired mask and Mask ≠ ∅, regardless of what the
// underlying backend actually reported.
//
// A Poller is owned by exactly one goroutine; none of its methods take a
// lock.
type Poller struct {
	backend pollerBackend
	kind    Backend
	state   HandleState

	fds []fdEntry

	rawBuf []backendEvent
	rawN   int

	pending    []Event
	pendingPos int
}

// NewPoller creates a Poller using the requested backend (Auto selects the
// best one compiled for the host OS). hint is a capacity estimate that
// backends may use to presize kernel structures; they are free to ignore
// it.
func NewPoller(backend Backend, hint int) (*Poller, error) {
	factory, ok := lookupBackend(backend)
	if !ok {
		return nil, wrapf(ErrOutOfResources, "no poller backend available for %s", backend)
	}

	impl := factory.new()
	if err := impl.open(hint); err != nil {
		return nil, wrapf(ErrOutOfResources, "poller init (%s)", factory.kind)
	}

	if hint <= 0 {
		hint = 64
	}
	return &Poller{
		backend: impl,
		kind:    factory.kind,
		state:   HandleActive,
		fds:     make([]fdEntry, hint),
		rawBuf:  make([]backendEvent, 256),
	}, nil
}

// Backend reports which concrete mechanism this Poller selected.
func (p *Poller) Backend() Backend { return p.kind }

// Destroy releases kernel state and the per-fd table.
func (p *Poller) Destroy() error {
	if p.state == HandleClosed {
		return nil
	}
	p.state = HandleClosed
	return p.backend.close()
}

func (p *Poller) ensureCapacity(fd int) error {
	if fd < 0 {
		return wrapf(ErrBadDescriptor, "negative fd %d", fd)
	}
	if fd >= maxTrackedFD {
		return wrapf(ErrBadDescriptor, "fd %d exceeds max tracked fd", fd)
	}
	if fd >= len(p.fds) {
		newSize := fd + 1
		if newSize < 2*len(p.fds) {
			newSize = 2 * len(p.fds)
		}
		if newSize > maxTrackedFD {
			newSize = maxTrackedFD
		}
		grown := make([]fdEntry, newSize)
		copy(grown, p.fds)
		p.fds = grown
	}
	return nil
}

// Add registers fd with the desired mask and an opaque cookie, returned
// verbatim on every event for fd. Re-adding an already-registered fd
// updates its mask and cookie (idempotent upsert).
func (p *Poller) Add(fd int, mask ReadinessMask, cookie uintptr) error {
	if p.state != HandleActive {
		return ErrClosed
	}
	if err := p.ensureCapacity(fd); err != nil {
		return err
	}

	entry := &p.fds[fd]
	if entry.active {
		entry.mask = mask
		entry.cookie = cookie
		if err := p.backend.modify(fd, mask); err != nil {
			return wrapf(ErrIoError, "modify fd %d", fd)
		}
		return nil
	}

	if err := p.backend.add(fd, mask); err != nil {
		return wrapf(ErrOutOfResources, "add fd %d", fd)
	}
	entry.mask = mask
	entry.cookie = cookie
	entry.active = true
	return nil
}

// Remove deregisters fd. Removing an unknown fd is a no-op.
func (p *Poller) Remove(fd int) error {
	if p.state != HandleActive {
		return ErrClosed
	}
	if fd < 0 || fd >= len(p.fds) || !p.fds[fd].active {
		return nil
	}
	p.fds[fd] = fdEntry{}
	_ = p.backend.remove(fd)
	return nil
}

// SetMask changes the desired mask on an already-added fd. Unknown fd fails
// with ErrNotFound.
func (p *Poller) SetMask(fd int, mask ReadinessMask) error {
	if p.state != HandleActive {
		return ErrClosed
	}
	if fd < 0 || fd >= len(p.fds) || !p.fds[fd].active {
		return wrapf(ErrNotFound, "fd %d", fd)
	}
	p.fds[fd].mask = mask
	if err := p.backend.modify(fd, mask); err != nil {
		return wrapf(ErrIoError, "set mask fd %d", fd)
	}
	return nil
}

// Wait blocks up to timeoutMs (negative means forever, zero means a
// non-blocking poll) and returns the number of descriptors with ready
// events. Results are staged internally; drain them with NextEvent.
func (p *Poller) Wait(timeoutMs int) (int, error) {
	if p.state != HandleActive {
		return 0, ErrClosed
	}

	p.pending = p.pending[:0]
	p.pendingPos = 0

	n, err := p.backend.wait(timeoutMs, p.rawBuf)
	if err != nil {
		if err == ErrInterrupted {
			return 0, nil
		}
		return 0, wrapf(ErrIoError, "poll wait")
	}
	p.rawN = n

	edge := p.backend.edgeTriggered()
	for i := 0; i < n; i++ {
		raw := p.rawBuf[i]
		if raw.fd < 0 || raw.fd >= len(p.fds) {
			continue
		}
		entry := &p.fds[raw.fd]
		if !entry.active {
			// Stale: the kernel still has state for an fd we removed.
			// Drop the event and lazily repair the backend.
			_ = p.backend.remove(raw.fd)
			continue
		}

		observed := raw.mask & entry.mask
		if observed == 0 {
			if edge {
				// Level-triggered semantics must be re-established after
				// an edge-triggered delivery that filtered down to nothing.
				_ = p.backend.modify(raw.fd, entry.mask)
			}
			continue
		}

		p.pending = append(p.pending, Event{Fd: raw.fd, Mask: observed, Cookie: entry.cookie})
	}

	return len(p.pending), nil
}

// NextEvent drains one ready event per call, returning false once the
// batch produced by the most recent Wait is exhausted.
func (p *Poller) NextEvent() (Event, bool) {
	if p.pendingPos >= len(p.pending) {
		return Event{}, false
	}
	ev := p.pending[p.pendingPos]
	p.pendingPos++
	return ev, true
}
