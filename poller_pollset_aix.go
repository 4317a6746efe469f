//go:build aix

package reactor

// Poll and Select are registered once, universally, by the init in
// poller_poll_unix.go; this file only adds the platform's best choice.
func init() {
	registerBackend(PollSet, 100, func() pollerBackend { return &pollSetBackend{} })
}

// pollSetBackend registers itself as PollSet but delegates to poll(2)
// underneath. AIX's real pollset_create/pollset_ctl/pollset_poll family is
// only reachable via libpthread through cgo, which is off the table here;
// rather than fabricate a binding that doesn't exist, this backend is honest
// about running on poll() while still giving AIX its own named entry in the
// backend table, ranked as the platform's best compiled-in choice.
type pollSetBackend struct {
	pollBackend
}
