// Package dump reads the JSON dump files written by the scraper and turns
// their records into download tasks.
//
// # Dump Format
//
//	{
//	  "schematics": [{"id": "...", "fileName": "...", "url": "...", "size": 0, "date": 0}],
//	  "lastProcessedMessageID": "...",
//	  "schematicType": "OfficialDiscordSchematic"
//	}
//
// Each file is parsed on its own. A broken file is reported as a
// *ParseError and the remaining files are still loaded.
//
// # Basic Usage
//
//	dumps, errs := dump.NewLoader(store, onProgress, logger).Load("dumps")
//	ing, err := dump.Enqueue(store, "schematics", dumps, skip, scheduler, onProgress)
package dump
