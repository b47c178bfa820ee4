package domain

import (
	"encoding/json"
	"fmt"
)

// EnrichmentKind identifies one known enrichment payload variant.
type EnrichmentKind string

const (
	EnrichmentEntities EnrichmentKind = "entities"
	EnrichmentTopics   EnrichmentKind = "topics"
	EnrichmentSummary  EnrichmentKind = "summary"
	// EnrichmentRaw preserves payload keys this version does not recognize.
	EnrichmentRaw EnrichmentKind = "raw"
)

// EnrichmentItem is one variant of the tagged union. Exactly one of the
// payload fields is meaningful, selected by Kind.
type EnrichmentItem struct {
	Kind     EnrichmentKind  `json:"kind"`
	Entities []string        `json:"entities,omitempty"`
	Topics   []string        `json:"topics,omitempty"`
	Summary  string          `json:"summary,omitempty"`
	Raw      json.RawMessage `json:"raw,omitempty"`
}

// Enrichment is the decoded enrichment payload of a chunk.
type Enrichment []EnrichmentItem

// DecodeEnrichment parses the loosely-typed ingestion payload
// (a JSON object keyed by enrichment name) into the tagged union.
// Unrecognized keys are retained as raw items rather than dropped.
func DecodeEnrichment(data []byte) (Enrichment, error) {
	if len(data) == 0 {
		return nil, nil
	}

	var payload map[string]json.RawMessage
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode enrichment payload: %w", err)
	}

	var enrichment Enrichment
	for key, raw := range payload {
		switch EnrichmentKind(key) {
		case EnrichmentEntities:
			var entities []string
			if err := json.Unmarshal(raw, &entities); err != nil {
				return nil, fmt.Errorf("failed to decode entities: %w", err)
			}
			enrichment = append(enrichment, EnrichmentItem{Kind: EnrichmentEntities, Entities: entities})
		case EnrichmentTopics:
			var topics []string
			if err := json.Unmarshal(raw, &topics); err != nil {
				return nil, fmt.Errorf("failed to decode topics: %w", err)
			}
			enrichment = append(enrichment, EnrichmentItem{Kind: EnrichmentTopics, Topics: topics})
		case EnrichmentSummary:
			var summary string
			if err := json.Unmarshal(raw, &summary); err != nil {
				return nil, fmt.Errorf("failed to decode summary: %w", err)
			}
			enrichment = append(enrichment, EnrichmentItem{Kind: EnrichmentSummary, Summary: summary})
		default:
			wrapped, err := json.Marshal(map[string]json.RawMessage{key: raw})
			if err != nil {
				return nil, fmt.Errorf("failed to preserve unknown enrichment %q: %w", key, err)
			}
			enrichment = append(enrichment, EnrichmentItem{Kind: EnrichmentRaw, Raw: wrapped})
		}
	}
	return enrichment, nil
}

// Encode serializes the enrichment for storage.
func (e Enrichment) Encode() ([]byte, error) {
	if len(e) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to encode enrichment: %w", err)
	}
	return data, nil
}

// DecodeStoredEnrichment parses the storage representation written by Encode.
func DecodeStoredEnrichment(data []byte) (Enrichment, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var e Enrichment
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("failed to decode stored enrichment: %w", err)
	}
	return e, nil
}

// Entities returns all entity names across entity items.
func (e Enrichment) Entities() []string {
	var out []string
	for _, item := range e {
		if item.Kind == EnrichmentEntities {
			out = append(out, item.Entities...)
		}
	}
	return out
}

// Topics returns all topics across topic items.
func (e Enrichment) Topics() []string {
	var out []string
	for _, item := range e {
		if item.Kind == EnrichmentTopics {
			out = append(out, item.Topics...)
		}
	}
	return out
}

// Summary returns the first summary item, or "".
func (e Enrichment) Summary() string {
	for _, item := range e {
		if item.Kind == EnrichmentSummary {
			return item.Summary
		}
	}
	return ""
}
