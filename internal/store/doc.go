// Package store implements the in-memory key-value storage engine.
//
// A Store is a cheap-to-copy handle to shared state: a map from key to
// value plus an ordered index of pending expirations, guarded by a single
// mutex. Critical sections are O(1)-bounded and the lock is never held
// across a blocking operation.
//
// Each Store spawns one background reaper goroutine at construction. The
// reaper sleeps until the earliest pending expiration and purges due keys
// eagerly; a Set that moves the earliest deadline forward wakes it early.
// Close signals the reaper to exit; forgetting to call Close leaks the
// goroutine for the life of the process.
package store
