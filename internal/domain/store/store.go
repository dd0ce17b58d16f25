package store

import (
	"fmt"
	"regexp"
)

var idRegex = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)

// Category is the kind of memory a store holds. Every result carries it as its source.
type Category string

const (
	CategorySessions     Category = "sessions"
	CategoryCaseStudies  Category = "case_studies"
	CategoryProtocols    Category = "protocols"
	CategoryCapabilities Category = "capabilities"
	CategorySystemDocs   Category = "system_docs"
	CategoryMemory       Category = "memory"
)

var categories = []Category{
	CategorySessions, CategoryCaseStudies, CategoryProtocols,
	CategoryCapabilities, CategorySystemDocs, CategoryMemory,
}

// Categories returns all known categories in canonical order.
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}

// IsValid checks if the category is one of the known kinds.
func (c Category) IsValid() bool {
	for _, known := range categories {
		if c == known {
			return true
		}
	}
	return false
}

// ParseCategory validates a raw category string.
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if !c.IsValid() {
		return "", fmt.Errorf("unknown store category %q", s)
	}
	return c, nil
}

// Record fields every category may carry.
const (
	FieldContent   = "content"
	FieldStartLine = "start_line"
	FieldEndLine   = "end_line"
)

var commonPathFields = []string{"file_path", "path", "title"}

// categoryPathFields are tried after the common ones.
var categoryPathFields = map[Category][]string{
	CategorySessions:     {"date", "session_number"},
	CategoryCaseStudies:  {"case_id"},
	CategoryProtocols:    {"protocol_id"},
	CategoryCapabilities: {"name"},
	CategorySystemDocs:   {"filename"},
	CategoryMemory:       {"id"},
}

// PathFields returns the record fields that can name a result, in priority order.
func (c Category) PathFields() []string {
	out := make([]string, 0, len(commonPathFields)+len(categoryPathFields[c]))
	out = append(out, commonPathFields...)
	return append(out, categoryPathFields[c]...)
}

// RecordFields returns every field a result is built from.
func (c Category) RecordFields() []string {
	return append(c.PathFields(), FieldContent, FieldStartLine, FieldEndLine)
}

// Driver is the transport used to reach a store.
type Driver string

const (
	DriverSQLite     Driver = "sqlite"
	DriverSubprocess Driver = "subprocess"
	DriverValkey     Driver = "valkey"
	DriverRedis      Driver = "redis"
	DriverChromem    Driver = "chromem"
	DriverOpenSearch Driver = "opensearch"
	DriverS3Vectors  Driver = "s3vectors"
)

// IsValid checks if the driver is supported.
func (d Driver) IsValid() bool {
	switch d {
	case DriverSQLite, DriverSubprocess, DriverValkey, DriverRedis,
		DriverChromem, DriverOpenSearch, DriverS3Vectors:
		return true
	}
	return false
}

// Remote reports whether the store lives behind a network connection
// and may need time to come up.
func (d Driver) Remote() bool {
	switch d {
	case DriverValkey, DriverRedis, DriverOpenSearch, DriverS3Vectors:
		return true
	}
	return false
}

// ParseDriver validates a raw driver string.
func ParseDriver(s string) (Driver, error) {
	d := Driver(s)
	if !d.IsValid() {
		return "", fmt.Errorf("unknown store driver %q", s)
	}
	return d, nil
}

// Descriptor identifies one configured backing store (immutable value object).
type Descriptor struct {
	id       string
	category Category
	driver   Driver
}

// NewDescriptor validates and creates a store descriptor.
func NewDescriptor(id string, category Category, driver Driver) (Descriptor, error) {
	if id == "" {
		return Descriptor{}, fmt.Errorf("store id is required")
	}
	if len(id) > 64 {
		return Descriptor{}, fmt.Errorf("store id too long (max 64)")
	}
	if !idRegex.MatchString(id) {
		return Descriptor{}, fmt.Errorf("store id %q must be alphanumeric with '_', '-', '.'", id)
	}
	if !category.IsValid() {
		return Descriptor{}, fmt.Errorf("store %s: unknown category %q", id, category)
	}
	if !driver.IsValid() {
		return Descriptor{}, fmt.Errorf("store %s: unknown driver %q", id, driver)
	}
	return Descriptor{id: id, category: category, driver: driver}, nil
}

// ID returns the unique store identifier.
func (d Descriptor) ID() string { return d.id }

// Category returns the store's memory category.
func (d Descriptor) Category() Category { return d.category }

// Driver returns the store transport.
func (d Descriptor) Driver() Driver { return d.driver }
