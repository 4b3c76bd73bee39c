// Package session holds parsed, resampled recordings addressable by id.
//
// A Session is immutable once stored. The Registry serializes inserts and
// lets any number of streaming controllers read concurrently. The Creator
// turns a request Config into a stored Session.
package session
