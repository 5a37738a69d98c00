// Package spending holds the domain vocabulary of the spending read model:
// project lifecycle statuses, government body categories, and the bounds on
// ratings and SDG focus codes shared by the indexer and the read API.
package spending

import "strings"

// ProjectStatus describes the lifecycle label of a project or spending
// record. The set is closed and ordinal only for display; no automatic
// transitions are applied by the indexer.
type ProjectStatus string

const (
	StatusUnspecified ProjectStatus = ""
	StatusPlanned     ProjectStatus = "planned"
	StatusOngoing     ProjectStatus = "ongoing"
	StatusCompleted   ProjectStatus = "completed"
	StatusCancelled   ProjectStatus = "cancelled"
)

// NormalizeStatus parses a status label into a canonical value. Legacy
// contract versions emit "In Progress" for ongoing projects.
func NormalizeStatus(value string) (ProjectStatus, bool) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return StatusUnspecified, false
	}
	switch strings.ToUpper(trimmed) {
	case "PLANNED":
		return StatusPlanned, true
	case "ONGOING", "IN PROGRESS", "IN_PROGRESS":
		return StatusOngoing, true
	case "COMPLETED":
		return StatusCompleted, true
	case "CANCELLED", "CANCELED":
		return StatusCancelled, true
	default:
		return StatusUnspecified, false
	}
}

// BodyCategory classifies a government body.
type BodyCategory string

const (
	CategoryUnspecified  BodyCategory = ""
	CategoryFederal      BodyCategory = "Federal"
	CategoryState        BodyCategory = "State"
	CategoryLocalCouncil BodyCategory = "Local Council"
)

// NormalizeCategory parses a body category label into a canonical value.
func NormalizeCategory(value string) (BodyCategory, bool) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return CategoryUnspecified, false
	}
	switch strings.ToUpper(trimmed) {
	case "FEDERAL":
		return CategoryFederal, true
	case "STATE":
		return CategoryState, true
	case "LOCAL COUNCIL", "LOCAL_COUNCIL":
		return CategoryLocalCouncil, true
	default:
		return CategoryUnspecified, false
	}
}

// Rating bounds for citizen feedback.
const (
	MinRating = 1
	MaxRating = 5
)

// IsValidRating reports whether a feedback rating is in range.
func IsValidRating(rating int) bool {
	return rating >= MinRating && rating <= MaxRating
}

// SDG focus code bounds (UN Sustainable Development Goals 1-17).
const (
	MinSDGFocus = 1
	MaxSDGFocus = 17
)

// IsValidSDGFocus reports whether an SDG focus code is in range.
func IsValidSDGFocus(code int) bool {
	return code >= MinSDGFocus && code <= MaxSDGFocus
}
