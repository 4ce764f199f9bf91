// Package snapshot stores progress snapshots on disk so a playback
// session can be reconstructed after a crash or daemon restart. Each
// snapshot is a zstd-compressed JSON file named <snapshot_id>.snapshot.zst.
package snapshot
