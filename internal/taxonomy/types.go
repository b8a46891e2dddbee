package taxonomy

import (
	"strings"
	"time"
)

// Severity represents the urgency of a classified error, in descending order.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityError    Severity = "ERROR"
	SeverityWarn     Severity = "WARN"
	SeverityInfo     Severity = "INFO"
)

// Category represents the functional area an error belongs to.
type Category string

const (
	CategoryAPI         Category = "API"
	CategoryUI          Category = "UI"
	CategoryValidation  Category = "VALIDATION"
	CategoryNetwork     Category = "NETWORK"
	CategoryAuth        Category = "AUTH"
	CategoryAuthz       Category = "AUTHZ"
	CategoryDatabase    Category = "DATABASE"
	CategoryPayment     Category = "PAYMENT"
	CategoryIntegration Category = "INTEGRATION"
	CategoryUnknown     Category = "UNKNOWN"
)

// Rank returns a numeric rank for severity comparison. Lower is more urgent.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityError:
		return 1
	case SeverityWarn:
		return 2
	case SeverityInfo:
		return 3
	default:
		return 1
	}
}

// ResponseTarget returns the expected response time for a severity level.
func (s Severity) ResponseTarget() time.Duration {
	switch s {
	case SeverityCritical:
		return 15 * time.Minute
	case SeverityError:
		return 4 * time.Hour
	case SeverityWarn:
		return 24 * time.Hour
	default:
		return 0 // no target for INFO
	}
}

// AutoTicket returns whether this severity creates a ticket by default.
// WARN is configurable at runtime; this is only the default.
func (s Severity) AutoTicket() bool {
	return s == SeverityCritical || s == SeverityError
}

// ParseSeverity normalizes a severity string to a standard value.
// Unknown values default to ERROR so a bad registry entry never silences an error.
func ParseSeverity(severity string) Severity {
	switch strings.ToUpper(strings.TrimSpace(severity)) {
	case "CRITICAL", "FATAL", "DISASTER", "P1":
		return SeverityCritical
	case "ERROR", "HIGH", "MAJOR", "P2":
		return SeverityError
	case "WARN", "WARNING", "MINOR", "P3":
		return SeverityWarn
	case "INFO", "INFORMATIONAL", "NOTICE", "LOW", "P4":
		return SeverityInfo
	default:
		return SeverityError
	}
}

// ParseCategory normalizes a category string to a standard value.
func ParseCategory(category string) Category {
	switch strings.ToUpper(strings.TrimSpace(category)) {
	case "API":
		return CategoryAPI
	case "UI":
		return CategoryUI
	case "VALIDATION":
		return CategoryValidation
	case "NETWORK":
		return CategoryNetwork
	case "AUTH":
		return CategoryAuth
	case "AUTHZ":
		return CategoryAuthz
	case "DATABASE", "DB":
		return CategoryDatabase
	case "PAYMENT":
		return CategoryPayment
	case "INTEGRATION":
		return CategoryIntegration
	default:
		return CategoryUnknown
	}
}

// ValidSeverities returns all severity values in descending urgency.
func ValidSeverities() []Severity {
	return []Severity{SeverityCritical, SeverityError, SeverityWarn, SeverityInfo}
}

// ValidCategories returns all category values.
func ValidCategories() []Category {
	return []Category{
		CategoryAPI, CategoryUI, CategoryValidation, CategoryNetwork,
		CategoryAuth, CategoryAuthz, CategoryDatabase, CategoryPayment,
		CategoryIntegration, CategoryUnknown,
	}
}
