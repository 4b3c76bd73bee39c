// Package stream serves session frame tables to websocket clients.
//
// A Manager tracks live connections and serializes writes per connection.
// A Controller drives one stream through
//
//	IDLE -> VALIDATING -> STREAMING -> COMPLETED
//	        VALIDATING -> REJECTED
//	                      STREAMING -> ABORTED
//
// pacing frames with a Pacer. The Handler upgrades HTTP requests, runs the
// receive loop and starts at most one controller per connection at a time.
package stream
