// Package ingest parses recorded trajectory datasets into agent handles the
// trajectory adapter can probe.
//
// Two recording families are supported:
//   - LevelX drone recordings (highD, inD, rounD, exiD, uniD) stored as
//     NN_tracks.csv, NN_tracksMeta.csv and NN_recordingMeta.csv
//   - GTFS-Realtime vehicle position recordings stored as a size-delimited
//     stream of FeedMessage snapshots (NN_vehicle_positions.pbs)
//
// The two families deliberately expose different accessor shapes: LevelX
// agents answer StateAtTimestamp with canonical field names, GTFS-RT agents
// answer the generic State accessor with alternate field names.
package ingest
