/*
Package playback implements the session state machine that keeps replay
safe while the desktop changes underneath it.

# Overview

A Controller owns at most one PlaybackSession and serializes every
operation on it behind a single mutex, so focus events, action
execution, health checks and operator commands each see a consistent
session and apply their transition atomically.

# State machine

	running --[pause]----> paused(reason) --[resume]--> running
	running --[abort]----> aborted(text)
	paused  --[abort]----> aborted(text)
	any     --[stop]-----> (no session)

Aborted is terminal: only stop leaves it. Pause intervals are accounted
on resume, so TotalPauseDuration strictly grows across every
pause/resume cycle.

# Focus-loss policies

Each session carries one immutable FocusLossStrategy:

  - auto_pause: losing focus pauses a running session; regaining it
    resumes a session paused for that reason. Manual and error pauses
    are never resumed by focus.
  - strict_error: losing focus aborts immediately with a report id.
    Regaining focus never revives the session.
  - ignore: focus changes are logged and nothing else. Per-action focus
    verification still applies.

# Action gate

ExecuteAction runs the full pre-injection gate: focus verification
(session exists, monitoring active, session running, target focused),
then geometric validation, then injection. Each stage fails with a
typed error so callers can distinguish "retry once focus returns" from
"this action is wrong".

# Recovery

Snapshots capture a session's identity and position; restoring one
always yields a paused(user_requested) session awaiting an explicit
resume. Health checks move a failing session to
paused(application_error) and report the open recovery options.
*/
package playback
