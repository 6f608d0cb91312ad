package domain

import (
	"time"
)

// ClaimStatus is the processing state of a claim.
type ClaimStatus string

const (
	ClaimPending  ClaimStatus = "pending"
	ClaimApproved ClaimStatus = "approved"
	ClaimRejected ClaimStatus = "rejected"
)

// ValidStatus reports whether s is a known claim status.
func ValidStatus(s ClaimStatus) bool {
	switch s {
	case ClaimPending, ClaimApproved, ClaimRejected:
		return true
	}
	return false
}

// ClaimType is the line of business a claim falls under.
type ClaimType string

const (
	ClaimTypeAuto     ClaimType = "auto"
	ClaimTypeHealth   ClaimType = "health"
	ClaimTypeProperty ClaimType = "property"
	ClaimTypeHome     ClaimType = "home"
	ClaimTypeLife     ClaimType = "life"
)

// Claim represents an ingested insurance claim.
type Claim struct {
	ID           string         `json:"id"`
	OwnerID      string         `json:"ownerId"`
	Status       ClaimStatus    `json:"status"`
	DocumentName string         `json:"documentName"`
	ExtractedData map[string]any `json:"extractedData,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

// ClaimFeatures is the normalized feature record scoring operates on.
// Constructed per request from extracted document fields; not persisted.
type ClaimFeatures struct {
	ClaimAmount     float64   `json:"claimAmount"`
	ClaimType       ClaimType `json:"claimType"`
	ClaimantAge     int       `json:"claimantAge"`
	ClaimLengthDays int       `json:"claimLengthDays,omitempty"`
}

// IngestRequest is the API request payload for claim ingestion.
// DocumentText, when present, is run through the field extractor;
// Fields may carry pre-extracted values that take precedence.
type IngestRequest struct {
	DocumentName string         `json:"documentName"`
	DocumentText string         `json:"documentText,omitempty"`
	Fields       map[string]any `json:"fields,omitempty"`
}
