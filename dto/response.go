package dto

import (
	"errors"
	"fmt"
)

// Custom errors
var (
	ErrInvalidImage           = errors.New("invalid image")
	ErrEmptyUpload            = errors.New("no file provided")
	ErrLobbyNotFound          = errors.New("lobby not found")
	ErrItemNotFound           = errors.New("item not found")
	ErrInvalidPasscode        = errors.New("invalid lobby passcode")
	ErrHostRequired           = errors.New("only host can edit items or reset claims")
	ErrNotParticipant         = errors.New("user not in lobby")
	ErrSecondaryNotConfigured = errors.New("secondary extraction source not configured")
	ErrMalformedPayload       = errors.New("malformed extraction payload")
)

// ValidationError reports a rejected request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Invalid builds a ValidationError with a formatted message.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// Extraction sources reported on a scan.
const (
	SourcePrimary   = "primary"
	SourceSecondary = "secondary"
	SourceMerged    = "merged"
)

// ScanTotals is the computed item subtotal next to the detected receipt figures.
type ScanTotals struct {
	ComputedSubtotal float64 `json:"computed_subtotal"`
	ReceiptTotals
}

type ConfidenceSummary struct {
	QualityScore        float64 `json:"quality_score"`
	ItemCount           int     `json:"item_count"`
	NeedsReviewCount    int     `json:"needs_review_count"`
	FallbackAttempted   bool    `json:"fallback_attempted"`
	ForceFallback       bool    `json:"force_fallback"`
	SecondaryConfigured bool    `json:"secondary_configured"`
	FallbackTimeoutSec  float64 `json:"fallback_timeout_sec"`
	FallbackError       *string `json:"fallback_error"`
	MergedFromSecondary int     `json:"merged_from_secondary"`
}

type ScanDebug struct {
	LineCount int      `json:"line_count"`
	Lines     []string `json:"lines"`
}

// ScanResponse is the final response structure of a receipt scan
type ScanResponse struct {
	Items             []ParsedItem       `json:"items"`
	NeedsReview       []NeedsReviewEntry `json:"needs_review"`
	Source            string             `json:"source,omitempty"`
	Totals            *ScanTotals        `json:"totals,omitempty"`
	ConfidenceSummary *ConfidenceSummary `json:"confidence_summary,omitempty"`
	ReceiptQR         string             `json:"receipt_qr,omitempty"`
	ReceiptImageURL   string             `json:"receipt_image_url,omitempty"`
	Debug             *ScanDebug         `json:"debug,omitempty"`
	Error             string             `json:"error,omitempty"`
	ProcessedAt       string             `json:"processed_at,omitempty"`
}
