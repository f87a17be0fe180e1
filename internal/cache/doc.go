// Package cache provides an LRU cache of whole blobs for read-heavy stores.
//
// Entries are bounded by total byte size, and memory can additionally be
// charged against a resource.Controller so cached blobs count towards the
// same budget as open handles.
package cache
