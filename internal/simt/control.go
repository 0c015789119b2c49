package simt

import "sync/atomic"

// Control is the shared abort flag polled at kernel entry. It is owned
// by the caller across a whole decode loop: a set flag cancels every
// subsequent launch until Reset. Cancellation is advisory and
// cooperative; a launch already past its entry poll runs to
// completion.
type Control struct {
	flag uint32
}

// Abort requests cooperative cancellation.
func (c *Control) Abort() {
	atomic.StoreUint32(&c.flag, 1)
}

// Reset clears the flag.
func (c *Control) Reset() {
	atomic.StoreUint32(&c.flag, 0)
}

// Aborted reports whether cancellation has been requested.
func (c *Control) Aborted() bool {
	return atomic.LoadUint32(&c.flag) != 0
}
