// Package addressing implements the recipient directory used by the
// notification jobs: a YAML address book with typed, individually
// switchable contact payloads, a pluggable filter chain deciding per
// operation which entries are notified, and hot reloading via an
// atomically swapped immutable snapshot.
package addressing
