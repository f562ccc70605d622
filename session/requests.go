package session

// PrintRequests is a single-slot queue of pending detailed-print requests. However many
// times the operator asks while a request is pending, exactly one detailed printout is
// produced, by the next successful pose estimate. Safe for concurrent use.
type PrintRequests struct {
	pending chan struct{}
}

// NewPrintRequests returns an empty request queue.
func NewPrintRequests() *PrintRequests {
	return &PrintRequests{pending: make(chan struct{}, 1)}
}

// Request enqueues a detailed-print request and reports whether it was accepted; a
// request already pending absorbs the new one.
func (pr *PrintRequests) Request() bool {
	select {
	case pr.pending <- struct{}{}:
		return true
	default:
		return false
	}
}

// TakeRequest consumes the pending request, if any.
func (pr *PrintRequests) TakeRequest() bool {
	select {
	case <-pr.pending:
		return true
	default:
		return false
	}
}
