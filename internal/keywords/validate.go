package keywords

import "fmt"

// Pool-count bounds. Uploads below MinKeywords are accepted (pools
// accumulate across uploads); the minimum gates downstream stages.
const (
	MinKeywords   = 5
	MaxKeywords   = 5000
	WarnThreshold = 20
)

// CountValidation is the advisory result of a pool-count check.
type CountValidation struct {
	Valid   bool   `json:"valid"`
	Error   string `json:"error,omitempty"`
	Warning string `json:"warning,omitempty"`
}

// ValidateCount checks a keyword count against the pool bounds. Counts
// below MinKeywords or above MaxKeywords are invalid; valid counts under
// WarnThreshold carry a non-blocking recommendation.
func ValidateCount(count int) CountValidation {
	if count < MinKeywords {
		return CountValidation{
			Valid: false,
			Error: fmt.Sprintf("at least %d keywords required, got %d", MinKeywords, count),
		}
	}
	if count > MaxKeywords {
		return CountValidation{
			Valid: false,
			Error: fmt.Sprintf("at most %d keywords allowed, got %d", MaxKeywords, count),
		}
	}
	if count < WarnThreshold {
		return CountValidation{
			Valid:   true,
			Warning: fmt.Sprintf("only %d keywords uploaded; 50-100+ recommended for useful grouping", count),
		}
	}
	return CountValidation{Valid: true}
}
