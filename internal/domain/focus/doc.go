// Package focus tracks OS focus for the target process during playback.
//
// Monitor subscribes to a platform.FocusWatcher and reduces raw focus
// observations to transition events: target_lost_focus when another
// process takes the foreground, target_gained_focus when the target
// returns, focus_error when observation itself fails. It is the sole
// owner of FocusState; every query hands out a copy.
//
// Events are delivered on a buffered channel. A slow consumer never
// blocks the watcher: when the buffer is full the event is dropped and
// counted.
package focus
