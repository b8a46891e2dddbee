package taxonomy

import (
	"fmt"
	"log"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// codePattern is the required format for error codes: {MODULE}-{LAYER}-{CATEGORY}-{NNN}
var codePattern = regexp.MustCompile(`^[A-Z][A-Z0-9]{1,7}-[A-Z]{2,8}-[A-Z]{2,12}-\d{3}$`)

// ValidateCode checks that a code matches the registry format.
func ValidateCode(code string) error {
	if code == "" {
		return fmt.Errorf("error code is required")
	}
	if !codePattern.MatchString(code) {
		return fmt.Errorf("error code %q does not match MODULE-LAYER-CATEGORY-NNN format", code)
	}
	return nil
}

// ModuleFromCode extracts the module segment from a code.
// Returns "UNKNOWN" if the code has no module segment.
func ModuleFromCode(code string) string {
	if idx := strings.Index(code, "-"); idx > 0 {
		return code[:idx]
	}
	return "UNKNOWN"
}

// Entry is one registered error code. Entries are immutable once loaded.
type Entry struct {
	Code       string   `yaml:"code"`
	Module     string   `yaml:"module"`
	Category   Category `yaml:"category"`
	Severity   Severity `yaml:"severity"`
	HTTPStatus int      `yaml:"http_status"`
	Title      string   `yaml:"title"`
}

// Classification is the result of classifying one reported error.
// Classify is total: every input produces a usable classification.
type Classification struct {
	Severity   Severity
	Category   Category
	Module     string
	HTTPStatus int
	Title      string
	Known      bool
}

// Registry is an immutable, versioned lookup table of error codes.
// It is loaded once at process start; updates ship as a new registry file,
// never as runtime mutation.
type Registry struct {
	version int
	entries map[string]Entry
}

// registryFile is the YAML document shape for registry overlay files.
type registryFile struct {
	Version int     `yaml:"version"`
	Codes   []Entry `yaml:"codes"`
}

// NewRegistry builds a registry from the built-in code table.
func NewRegistry() *Registry {
	r := &Registry{
		version: builtinRegistryVersion,
		entries: make(map[string]Entry, len(builtinEntries)),
	}
	for _, e := range builtinEntries {
		r.add(e)
	}
	return r
}

// add normalizes and stores an entry. The registry is append-only: an entry
// for an already-registered code is ignored so loaded overlays cannot rewrite
// the meaning of existing codes.
func (r *Registry) add(e Entry) {
	if err := ValidateCode(e.Code); err != nil {
		log.Printf("Registry: skipping invalid code entry: %v", err)
		return
	}
	if _, exists := r.entries[e.Code]; exists {
		log.Printf("Registry: code %s already registered, ignoring redefinition", e.Code)
		return
	}
	if e.Module == "" {
		e.Module = ModuleFromCode(e.Code)
	}
	e.Severity = ParseSeverity(string(e.Severity))
	e.Category = ParseCategory(string(e.Category))
	if e.HTTPStatus == 0 {
		e.HTTPStatus = 500
	}
	r.entries[e.Code] = e
}

// LoadYAML merges a registry overlay into the table. New codes are appended;
// existing codes are never overwritten. The file version must not be lower
// than the current registry version.
func (r *Registry) LoadYAML(data []byte) error {
	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse registry file: %w", err)
	}
	if file.Version < r.version {
		return fmt.Errorf("registry file version %d is older than loaded version %d", file.Version, r.version)
	}
	for _, e := range file.Codes {
		r.add(e)
	}
	if file.Version > r.version {
		r.version = file.Version
	}
	log.Printf("Registry: loaded %d codes (version %d)", len(r.entries), r.version)
	return nil
}

// LoadFile merges a registry overlay file from disk.
func (r *Registry) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read registry file: %w", err)
	}
	return r.LoadYAML(data)
}

// Version returns the registry version.
func (r *Registry) Version() int {
	return r.version
}

// Len returns the number of registered codes.
func (r *Registry) Len() int {
	return len(r.entries)
}

// Lookup returns the entry for a code, if registered.
func (r *Registry) Lookup(code string) (Entry, bool) {
	e, ok := r.entries[code]
	return e, ok
}

// Classify maps a raw error to its severity and category. It never fails:
// unknown codes classify as ERROR/UNKNOWN with a sensible HTTP status so the
// reporting path can always proceed.
func (r *Registry) Classify(code string, httpStatus int, module string) Classification {
	if e, ok := r.entries[code]; ok {
		c := Classification{
			Severity:   e.Severity,
			Category:   e.Category,
			Module:     e.Module,
			HTTPStatus: e.HTTPStatus,
			Title:      e.Title,
			Known:      true,
		}
		if module != "" {
			c.Module = module
		}
		if httpStatus > 0 {
			c.HTTPStatus = httpStatus
		}
		return c
	}

	c := Classification{
		Severity:   SeverityError,
		Category:   CategoryUnknown,
		Module:     module,
		HTTPStatus: httpStatus,
		Title:      "Unclassified error",
		Known:      false,
	}
	if c.Module == "" {
		c.Module = ModuleFromCode(code)
	}
	if c.HTTPStatus <= 0 {
		c.HTTPStatus = 500
	}
	return c
}
