// Package services implements the [Initiator] contract for the import backend.
//
// # Submission
//
// [ImportService.Submit] acquires the [models.ImportForm], resets the progress surface, encodes the
// form according to the provider's declared encoding and POSTs it to the provider endpoint:
//   - [shared.EncodingURLEncoded] : application/x-www-form-urlencoded body from the form fields
//   - [shared.EncodingMultipart] : multipart/form-data with every field and uploaded file
//
// A provider without a declared encoding is rejected; the encoding is never guessed.
//
// # Error Handling
//
// Every failure is a [shared.JobSubmissionError] (matching [shared.ErrJobSubmission]):
//   - HTTP rejections carry the status code and status text
//   - network and body decoding failures carry the underlying error
//
// The surface then shows "Import failed" with "Error: <message>", the fill animation stops and the
// form is released so the user can retry. No retry is attempted by the service itself.
package services
