// Package cache keeps the results of finished jobs on disk so their records
// can be exported again later.
//
// Entries are JSON files named after the job ID in ~/.varbatch/cache/, each
// with a TTL after which they are ignored and cleaned up. The store is not a
// resume mechanism: a cancelled job's entry holds the records collected before
// it stopped, nothing more.
package cache
