// Package operation defines the normalized record all alarm sources produce
// and all jobs consume, together with its sub-records (locations, keywords,
// loop codes).
//
// The operation number is the deduplication key across redeliveries; the GUID
// identifies the record from the moment of creation, before it has a
// store-assigned ID.
package operation
