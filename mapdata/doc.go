// Package mapdata reads OpenStreetMap / lanelet2 style .osm files into the
// polyline payload handed to viewers alongside a session.
//
// Only ways are interpreted. A way becomes a lane when its type or subtype
// tag mentions lane, road, highway or motorway; every other way with at
// least two nodes becomes a boundary. Lanelet centreline reconstruction is
// not attempted.
package mapdata
