// Package model defines the core data structures used throughout
// msch-harvester.
//
// # Schematic
//
// Schematic is one record read from a dump file:
//
//	rec := model.Schematic{ID: "1234", FileName: "drill.msch", URL: url}
//	fmt.Println(rec.ArtifactName()) // "1234-drill.msch"
//
// # Category
//
// Category is a closed set of source namespaces. Its String value is both
// the dump wire value and the directory name artifacts are stored under:
//
//	c, err := model.ParseCategory("OfficialDiscordCuratedSchematic")
//
// # Task
//
// Task pairs a record with its category for the download scheduler:
//
//	task := model.NewTask(model.CategoryOfficialDiscord, rec)
//	fmt.Println(task.Destination("/data/schematics"))
package model
