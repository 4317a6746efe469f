// Package reactor implements the core of a portable, single-threaded
// asynchronous network server/client runtime.
//
// Three subsystems form the core:
//
//   - a hierarchical timing wheel [Scheduler] that arms and fires one-shot
//     and periodic timer entries in O(1) amortized time;
//   - a portable event-poll abstraction, [Poller], unifying select, poll,
//     epoll, kqueue, /dev/poll and pollset behind one add/modify/remove
//     model;
//   - a paged, in-memory byte [Stream] with a length-prefixed message
//     codec ([PushMessage]/[PopMessage]) used as the staging area between
//     the poller and higher protocol layers.
//
// [Reactor] ties the three together into the orchestration loop described
// in its own doc comment: advance the scheduler, wait on the poller until
// the next deadline, drain ready events, repeat.
//
// # Concurrency
//
// Every [Poller], [Stream], and [Scheduler] is owned by exactly one
// goroutine. The core exposes no locks on its hot paths; embedders wanting
// N reactor threads create N independent instances and shard work between
// them, waking each other with [Reactor.Wake].
//
// # Platform support
//
// The poller picks the highest-ranked backend compiled for the host OS:
//   - Linux: epoll
//   - Darwin/BSD: kqueue
//   - Solaris: /dev/poll
//   - AIX: pollset (registered under that name, but runs on poll(2); the
//     AIX pollset_* calls are not used)
//   - everything else (and as a POSIX fallback): poll, then select
//
// # Scope
//
// This package is deliberately narrow: no TLS, no congestion control, no
// DNS resolution, no HTTP, no protocol parsing beyond the 16-byte framing
// header. Those are the embedder's job, built on top of this core.
package reactor
