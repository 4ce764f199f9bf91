// Package registry manages the set of applications known to replayd.
//
// Components:
//   - Manager: CRUD over RegisteredApplication with copy-out reads
//   - Seeder: preregisters applications from a seed file on startup
//
// Storage Structure:
//   - One JSON file per application: {registry-dir}/{app-id}.json
//   - Serializable fields only; process ids and window handles are
//     runtime state and never reach disk
//   - Files are written atomically (temp file + rename)
package registry
