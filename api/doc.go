// Package api is the HTTP surface: session initialisation and lookup,
// status, file listing, websocket stats, metrics and the websocket route.
package api
