// Package session runs the frame-synchronous core of an interactive camera-geometry
// session: it dispatches operator commands, feeds detected markers through the pose
// estimator and emits pose reports. Frame capture, marker detection and key input live
// outside this package behind small interfaces.
package session

// Command is one operator action, produced by the host's input layer and handled at
// most once per frame.
type Command int

const (
	// CommandNoOp is the absence of input this frame.
	CommandNoOp Command = iota
	// CommandQuit ends the session loop cleanly.
	CommandQuit
	// CommandPrintDetailed requests one detailed pose printout.
	CommandPrintDetailed
	// CommandCaptureSample requests that the current frame be handed to the capture
	// hook, e.g. to save a calibration image.
	CommandCaptureSample
)

func (c Command) String() string {
	switch c {
	case CommandNoOp:
		return "noop"
	case CommandQuit:
		return "quit"
	case CommandPrintDetailed:
		return "print_detailed"
	case CommandCaptureSample:
		return "capture_sample"
	default:
		return "unknown"
	}
}
