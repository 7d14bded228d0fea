// Package models defines the data exchanged by the import protocol and the entities muzictl persists.
//
// The package contains two categories of types:
//
// 1. Protocol types: what travels over the wire or drives the progress panel
//   - [JobHandle] : the job identifier returned by an import endpoint
//   - [ProgressEvent] : one pushed progress message, with explicit optional fields
//   - [ImportForm] : user-supplied fields and uploads for one submission
//   - [State] and [ProgressUIState] : the subscriber's state machine and derived panel state
//
// 2. Persistent Entities: Database-backed models with full lifecycle management
//   - [ImportRun] : one submitted import and how it ended
//
// All persistent entities implement the Model interface providing ID generation, timestamps, validation, and soft delete support.
// The Repository[T] interface defines standard CRUD operations for database access.
package models
