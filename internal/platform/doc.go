// Package platform defines the capability interfaces between the playback
// core and the OS-specific layer.
//
// The core never talks to OS APIs directly. Focus watching, window and
// process introspection, and input injection are consumed through the
// interfaces defined here:
//   - FocusWatcher: ordered focus-change stream for one process
//   - ApplicationDetector: process existence, responsiveness, foreground query
//   - WindowResolver: window handle and bounds resolution
//   - InputInjector: mouse and keyboard synthesis
//
// Two drivers ship with the daemon: sim (deterministic in-process
// simulator, used by tests and sim mode) and remote (client for a native
// driver process speaking JSON over WebSocket). Native per-OS drivers are
// external deliverables implementing the same wire protocol.
package platform
