// Package sequencer runs the fixed list of remote operations for a verified
// session. Operations execute strictly one after another: operation N+1 is
// issued only after operation N has returned, whatever its outcome. Every
// outcome, including transport failures, comes back as a Result value; the
// only errors Run returns are precondition violations such as an unverified
// session.
package sequencer
