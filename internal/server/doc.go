// Package server implements a simulated import backend used by `muzictl dev serve` and by tests.
//
// # Routes
//
//	POST /import/{provider}                 → {"job_id": "...", "status": "started"}
//	GET  /import/{provider}/progress?job=ID → text/event-stream of progress events
//	GET  /import/{provider}/ws?job=ID       → the same events as WebSocket text frames
//
// Last.fm submissions are URL-encoded and need lastfm_username and lastfm_api_key. Spotify
// submissions are multipart with up to 30 JSON files under json_files.
//
// # Jobs
//
// Each submission creates a [Job] in the [JobStore] and starts a [Simulator] that plays a
// scripted import into the job's buffered update channel. A subscriber first receives
// {"status":"connected"}, then the ticks, then a completed or error event. Delivering the
// terminal event removes the job, so later subscriptions get 404 "Job not found".
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support. [ChiRouter] implements it
// on chi. [Handler] implementations group their [Route] values so a feature registers in one call.
package server
