// Package batch is the cooperative batch engine: it walks a host collection in
// small fixed-size chunks, applies one opaque operation per item, and records a
// before/after snapshot for every item it attempts.
//
// The engine is deliberately single-threaded. Key properties:
//   - Chunk size is clamped to a hard ceiling (MaxChunkCeiling) whatever the caller asks
//   - Large selections require explicit confirmation before any item is touched
//   - Per-item failures become data (ItemRecord.Error); the batch always moves forward
//   - Cancellation and the run deadline are checked only between chunks
//   - All timing (settle delay, inter-chunk pause, deadline) goes through an injectable Clock
//
// Records are produced in strict index order, contiguous from 1, and handed to
// the export package unchanged.
package batch
