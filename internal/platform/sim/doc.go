// Package sim provides a deterministic in-process platform driver.
//
// The simulator implements every platform capability against scripted
// state: tests and the daemon's sim mode register fake processes, move
// focus between them, toggle responsiveness, and inspect the journal of
// injected actions. No OS APIs are touched.
package sim
