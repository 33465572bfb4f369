// Package progress carries user-visible progress lines from the download
// scheduler and the sorter to the terminal.
//
// Components report through a callback:
//
//	onProgress := func(ev progress.Event) { printer.Print(ev) }
//
// Printer renders each event on its own line with a level-specific style.
// Verbose events are dropped unless the printer was created with verbose
// output enabled.
package progress
