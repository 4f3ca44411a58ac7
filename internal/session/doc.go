// Package session implements the dictation session coordinator. It
// owns per-session audio buffering, the flush trigger policy, the
// transcript accumulation pipeline, and the lifecycle that drives
// every session to a terminal durable state, including recovery after
// a process restart.
package session
