// Package core defines the shared types, interfaces, and format registry
// for the metadata engine.
package core

// NotAvailable is the placeholder for structured fields that are absent
// or unreadable.
const NotAvailable = "N/A"

// Field represents a single metadata key-value pair.
type Field struct {
	Key      string `json:"key"`
	Value    string `json:"value"`
	Category string `json:"category,omitempty"` // e.g. "EXIF", "ID3", "Info", "Filesystem"
}

// Metadata is an ordered record of fields extracted from a single file.
// Keys keep the native vocabulary of their format.
type Metadata struct {
	FilePath string  `json:"path"`
	Format   string  `json:"format"`
	Fields   []Field `json:"fields"`
}

// NewMetadata returns an empty record for path.
func NewMetadata(path, format string) *Metadata {
	return &Metadata{FilePath: path, Format: format}
}

// Set replaces the value of key if present, otherwise appends it.
func (m *Metadata) Set(key, value, category string) {
	for i := range m.Fields {
		if m.Fields[i].Key == key {
			m.Fields[i].Value = value
			m.Fields[i].Category = category
			return
		}
	}
	m.Fields = append(m.Fields, Field{Key: key, Value: value, Category: category})
}

// Get returns the value stored under key.
func (m *Metadata) Get(key string) (string, bool) {
	for _, f := range m.Fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return "", false
}

// Keys returns field keys in record order.
func (m *Metadata) Keys() []string {
	keys := make([]string, 0, len(m.Fields))
	for _, f := range m.Fields {
		keys = append(keys, f.Key)
	}
	return keys
}

// Len returns the number of fields.
func (m *Metadata) Len() int { return len(m.Fields) }

// OrNA maps an empty string to NotAvailable.
func OrNA(s string) string {
	if s == "" {
		return NotAvailable
	}
	return s
}

// Status classifies the result of a single-file operation.
type Status string

const (
	StatusOK          Status = "ok"          // metadata returned, or stripped in place
	StatusCopied      Status = "copied"      // cleaned copy written, original untouched
	StatusNoMetadata  Status = "no-metadata" // nothing to report
	StatusUnparseable Status = "unparseable" // container could not be parsed
	StatusUnsupported Status = "unsupported" // no handler supports the operation
	StatusProtected   Status = "protected"   // encrypted or signed content
	StatusError       Status = "error"       // corrupt container or I/O failure
)

// Outcome is the result of extracting or stripping one file.
type Outcome struct {
	Path     string    `json:"path"`
	Format   FormatID  `json:"format"`
	Status   Status    `json:"status"`
	Metadata *Metadata `json:"metadata,omitempty"`
	Message  string    `json:"message,omitempty"`
	Output   string    `json:"output,omitempty"` // file written by strip
	Err      error     `json:"-"`
}

// Usable reports whether the outcome carries a real result.
func (o *Outcome) Usable() bool {
	return o.Status == StatusOK || o.Status == StatusCopied
}

// FormatInfo describes what a format handler supports.
type FormatInfo struct {
	Name       string   // "JPEG"
	Extensions []string // [".jpg", ".jpeg"]
	Family     Family
	MIMETypes  []string
	CanStrip   bool
	Notes      string
}

// Handler is the interface every format family implements.
//
// Sentinel, protected and unsupported results are reported through the
// returned Outcome. The error return is reserved for corrupt containers
// and I/O failures.
type Handler interface {
	// Extract reads all discoverable metadata from path.
	Extract(path string) (*Outcome, error)
	// Strip removes metadata from path.
	Strip(path string) (*Outcome, error)
	// Info returns format capabilities.
	Info() FormatInfo
}
