package orm

import "fmt"

// ColumnType is a portable column type. Dialects map it to native SQL types.
type ColumnType string

const (
	TypeInteger ColumnType = "integer"
	TypeText    ColumnType = "text"
	TypeBoolean ColumnType = "boolean"
	TypeBlob    ColumnType = "blob"
)

// Column describes one persisted field of an entity.
type Column struct {
	Name       string     `yaml:"name"`
	Type       ColumnType `yaml:"type"`
	PrimaryKey bool       `yaml:"primary_key,omitempty"`
	Nullable   bool       `yaml:"nullable,omitempty"`
	Unique     bool       `yaml:"unique,omitempty"`
}

// EntityMetadata describes how an entity type maps onto storage.
type EntityMetadata struct {
	// Name is the entity name fixtures persist under (e.g. "User").
	Name string `yaml:"name"`
	// Table is the table or collection name.
	Table string `yaml:"table"`
	// Columns are stored in declaration order; order is part of the schema.
	Columns []Column `yaml:"columns"`
}

// PrimaryKey returns the first primary key column name, or "" when none is declared.
func (m EntityMetadata) PrimaryKey() string {
	for _, c := range m.Columns {
		if c.PrimaryKey {
			return c.Name
		}
	}
	return ""
}

// ColumnNames returns the column names in declaration order.
func (m EntityMetadata) ColumnNames() []string {
	names := make([]string, len(m.Columns))
	for i, c := range m.Columns {
		names[i] = c.Name
	}
	return names
}

// Column looks up a column by name.
func (m EntityMetadata) Column(name string) (Column, bool) {
	for _, c := range m.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Validate checks that the metadata can be turned into a schema.
func (m EntityMetadata) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("entity metadata: empty name")
	}
	if m.Table == "" {
		return fmt.Errorf("entity %s: empty table", m.Name)
	}
	if len(m.Columns) == 0 {
		return fmt.Errorf("entity %s: no columns", m.Name)
	}
	seen := make(map[string]bool, len(m.Columns))
	for _, c := range m.Columns {
		if !validIdentifier.MatchString(c.Name) {
			return fmt.Errorf("entity %s: invalid column name %q", m.Name, c.Name)
		}
		if seen[c.Name] {
			return fmt.Errorf("entity %s: duplicate column %q", m.Name, c.Name)
		}
		seen[c.Name] = true
	}
	if !validIdentifier.MatchString(m.Table) {
		return fmt.Errorf("entity %s: invalid table name %q", m.Name, m.Table)
	}
	return nil
}

// Canonical returns the metadata as plain values suitable for canonical
// encoding. Every field that affects the physical schema is included.
func (m EntityMetadata) Canonical() map[string]any {
	cols := make([]any, len(m.Columns))
	for i, c := range m.Columns {
		cols[i] = map[string]any{
			"name":        c.Name,
			"type":        string(c.Type),
			"primary_key": c.PrimaryKey,
			"nullable":    c.Nullable,
			"unique":      c.Unique,
		}
	}
	return map[string]any{
		"name":    m.Name,
		"table":   m.Table,
		"columns": cols,
	}
}

// CanonicalMetadata converts a metadata list for canonical encoding,
// preserving order.
func CanonicalMetadata(metas []EntityMetadata) []any {
	out := make([]any, len(metas))
	for i, m := range metas {
		out[i] = m.Canonical()
	}
	return out
}

// Lookup finds the metadata for entity by entity name.
func Lookup(metas []EntityMetadata, entity string) (EntityMetadata, error) {
	for _, m := range metas {
		if m.Name == entity {
			return m, nil
		}
	}
	return EntityMetadata{}, fmt.Errorf("%w: %s", ErrUnknownEntity, entity)
}
