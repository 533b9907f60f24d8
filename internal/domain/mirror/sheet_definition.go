package mirror

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// SheetDefinition is the durable record of a confirmed Schema.
type SheetDefinition struct {
	ID         string         `gorm:"column:id;type:text;primaryKey" json:"id"`
	ClientKey  string         `gorm:"column:client_key;index" json:"client_key"`
	SourceKind string         `gorm:"column:source_kind;not null;default:'xlsx'" json:"source_kind"`
	GridHash   string         `gorm:"column:grid_hash;index" json:"grid_hash"`
	SchemaJSON datatypes.JSON `gorm:"column:schema_json;not null" json:"schema_json"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (SheetDefinition) TableName() string { return "sheet_definition" }

func NewSheetDefinition(s *Schema) (*SheetDefinition, error) {
	if s == nil {
		return nil, fmt.Errorf("nil schema")
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal schema %q: %w", s.ID, err)
	}
	return &SheetDefinition{
		ID:         s.ID,
		ClientKey:  s.ClientKey,
		SourceKind: s.SourceKind,
		GridHash:   s.Fingerprint.GridHash,
		SchemaJSON: datatypes.JSON(raw),
	}, nil
}

func (d *SheetDefinition) Schema() (*Schema, error) {
	if d == nil {
		return nil, fmt.Errorf("nil sheet definition")
	}
	var s Schema
	if err := json.Unmarshal(d.SchemaJSON, &s); err != nil {
		return nil, fmt.Errorf("decode schema %q: %w", d.ID, err)
	}
	if s.ID == "" {
		s.ID = d.ID
	}
	return &s, nil
}
