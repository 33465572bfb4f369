package dto

import (
	"errors"
	"fmt"

	"github.com/handiism/msch-harvester/internal/model"
)

// JSONDump is one dump file as written by the scraper.
type JSONDump struct {
	Schematics             []JSONSchematic `json:"schematics"`
	LastProcessedMessageID string          `json:"lastProcessedMessageID"`
	SchematicType          *model.Category `json:"schematicType"`
}

// JSONSchematic is one record inside a dump.
type JSONSchematic struct {
	ID       string `json:"id"`
	FileName string `json:"fileName"`
	URL      string `json:"url"`
	Size     int64  `json:"size"`
	Date     int64  `json:"date"`
}

// Validate checks the fields every record needs to be downloaded.
func (js *JSONSchematic) Validate() error {
	switch {
	case js.ID == "":
		return errors.New("missing id")
	case js.FileName == "":
		return errors.New("missing fileName")
	case js.URL == "":
		return errors.New("missing url")
	}
	return nil
}

// ToSchematic converts JSONSchematic to a model.Schematic.
func (js *JSONSchematic) ToSchematic() model.Schematic {
	return model.Schematic{
		ID:       js.ID,
		FileName: js.FileName,
		URL:      js.URL,
		Size:     js.Size,
		Date:     js.Date,
	}
}

// Category returns the dump's category, failing if it was absent.
func (jd *JSONDump) Category() (model.Category, error) {
	if jd.SchematicType == nil {
		return model.CategoryUnknown, errors.New("missing schematicType")
	}
	return *jd.SchematicType, nil
}

// Records converts every schematic, failing on the first invalid one.
func (jd *JSONDump) Records() ([]model.Schematic, error) {
	out := make([]model.Schematic, 0, len(jd.Schematics))
	for i := range jd.Schematics {
		js := &jd.Schematics[i]
		if err := js.Validate(); err != nil {
			return nil, fmt.Errorf("schematic %d: %w", i, err)
		}
		out = append(out, js.ToSchematic())
	}
	return out, nil
}
