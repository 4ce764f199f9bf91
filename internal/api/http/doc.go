// Package http contains the gin handlers for the replayd control API.
//
// Handlers bind requests from internal/shared/types, call into the
// session service and application registry, and translate domain errors
// to status codes: unknown resources map to 404, state conflicts
// (active session, duplicate registration, run in progress, invalid
// transitions) map to 409, everything else the caller sent wrong maps
// to 400.
package http
