// Package tasks follows server-side import jobs with real-time progress reporting.
//
// # Progress Subscriber
//
// A [Subscriber] is a single-use state machine over one job's push channel:
//
//	Idle → Subscribing → Running → Completed | Failed | Disconnected
//
//  1. [Subscriber.Begin] : Idle → Subscribing once a job handle exists
//  2. [Subscriber.Run] : opens the channel and folds each frame into the surface
//     - {"status":"connected"} is a handshake and changes nothing
//     - total_pages > 0 updates the fill, percentage and "Processing <unit> <n> of <total>"
//     - tracks_imported updates the "<n> tracks imported" label
//     - "completed" and "error" are terminal; anything else is a tick
//  3. A channel that ends without a terminal event is Disconnected, which is not the same as
//     Failed: the import may still be running server-side.
//
// No reconnect is attempted. A user re-checks a job with [ImportEngine.Watch].
//
// # Transports
//
// [Transport] opens a [Stream] of message bodies:
//   - [SSETransport] : text/event-stream over HTTP
//   - [WebSocketTransport] : one text frame per event
//
// # State Changes
//
// Transitions are published on an optional channel of [StateChange]. Sends use select with
// default so a slow reader never stalls the subscription.
//
// # Import Engine
//
// [ImportEngine] runs submit then subscribe for a provider and records each run through an
// optional [RunRecorder] (repositories.ImportRunRepository). Recording errors are logged and
// otherwise ignored.
package tasks
