// Package ui implements the interactive progress view using bubbletea's Elm architecture.
//
// [ProgressModel] draws one provider's panel: a spinner and status line, a [progress] bar with the
// percent text, the tracks count and the error or success message.
//
// The import itself runs on its own goroutine and draws through a [ProgramSurface], which turns
// every [surface.Surface] call into a [Msg] sent to the program. [Run] wires the two together.
//
// q or ctrl+c quits (cancelling a running import); once the import finished any key exits.
package ui
