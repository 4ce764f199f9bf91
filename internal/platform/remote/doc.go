// Package remote implements the platform driver against a native driver
// process over a WebSocket JSON protocol.
//
// The daemon is OS-agnostic; a small native helper (one per OS) owns the
// accessibility, window and input APIs and serves them on a local
// WebSocket endpoint. This client issues request/response calls for
// introspection and injection, and receives server-push focus changes for
// active watches. Every call is bounded by the configured call window so
// health probes can never hang the controller.
package remote
