// Package httpserver provides the http.Handler surfaces served by the
// dispatcher:
//
//   - /api: a chi router with session, version and stats endpoints
//   - static files from the document root
//   - middleware shared by those surfaces: RequestID, Recover, AccessLog
//     and Instrument
//
// The handlers never touch the network themselves; the shard that owns the
// connection writes whatever they put into the response writer.
package httpserver
