package store

import (
	"encoding/json"
	"fmt"

	"golang.org/x/text/unicode/norm"

	"github.com/recora/recora/internal/resource"
)

// resourceRow mirrors the resources table for sqlx scanning.
type resourceRow struct {
	ResourceType string `db:"resource_type"`
	ID           string `db:"id"`
	VersionID    int64  `db:"version_id"`
	LastUpdated  string `db:"last_updated"`
	Deleted      bool   `db:"deleted"`
	Current      bool   `db:"current"`
	Body         string `db:"body"`
	Grants       string `db:"grants"`
}

func (r resourceRow) toResource() (*resource.Resource, error) {
	updated, err := resource.ParseTimestamp(r.LastUpdated)
	if err != nil {
		return nil, fmt.Errorf("row %s/%s v%d: bad timestamp %q: %w",
			r.ResourceType, r.ID, r.VersionID, r.LastUpdated, err)
	}

	var body map[string]any
	if err := json.Unmarshal([]byte(r.Body), &body); err != nil {
		return nil, fmt.Errorf("row %s/%s v%d: decode body: %w",
			r.ResourceType, r.ID, r.VersionID, err)
	}

	var grants []resource.Grant
	if err := json.Unmarshal([]byte(r.Grants), &grants); err != nil {
		return nil, fmt.Errorf("row %s/%s v%d: decode grants: %w",
			r.ResourceType, r.ID, r.VersionID, err)
	}

	return &resource.Resource{
		Type:        r.ResourceType,
		ID:          r.ID,
		VersionID:   r.VersionID,
		LastUpdated: updated,
		Deleted:     r.Deleted,
		Body:        body,
		Grants:      grants,
	}, nil
}

// marshalBody encodes a resource body for storage, normalizing every
// string value to NFC. String search parameters normalize query values
// the same way, so equality and prefix filters compare like with like.
func marshalBody(body map[string]any) (string, error) {
	if body == nil {
		body = map[string]any{}
	}
	encoded, err := json.Marshal(normalizeValue(body))
	if err != nil {
		return "", fmt.Errorf("encode body: %w", err)
	}
	return string(encoded), nil
}

func normalizeValue(v any) any {
	switch v := v.(type) {
	case string:
		return norm.NFC.String(v)
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, value := range v {
			out[key] = normalizeValue(value)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, value := range v {
			out[i] = normalizeValue(value)
		}
		return out
	default:
		return v
	}
}

func marshalGrants(grants []resource.Grant) (string, error) {
	if grants == nil {
		grants = []resource.Grant{}
	}
	encoded, err := json.Marshal(grants)
	if err != nil {
		return "", fmt.Errorf("encode grants: %w", err)
	}
	return string(encoded), nil
}
