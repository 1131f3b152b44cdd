package store

import (
	"encoding/json"
)

// Service is a catalog entry a complaint can be routed to.
type Service struct {
	ID           int32
	Code         string
	Name         string
	Description  string
	IncidentType string
	Category     string
	LocationType string
	Tags         []string
	Active       bool
	CreatedTs    int64
	UpdatedTs    int64
}

type FindService struct {
	ID         *int32
	Code       *string
	ActiveOnly bool
}

// EncodeTags serializes tags into the JSON text column shared by both drivers.
func EncodeTags(tags []string) string {
	if len(tags) == 0 {
		return "[]"
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "[]"
	}
	return string(b)
}

// DecodeTags parses the tags column. Malformed values yield no tags.
func DecodeTags(raw string) []string {
	if raw == "" {
		return nil
	}
	var tags []string
	if err := json.Unmarshal([]byte(raw), &tags); err != nil {
		return nil
	}
	return tags
}
