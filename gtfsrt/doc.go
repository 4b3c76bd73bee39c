// Package gtfsrt records live GTFS-Realtime vehicle position feeds into
// size-delimited FeedMessage files that the ingest package replays as
// trajectories.
package gtfsrt
