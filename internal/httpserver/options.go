package httpserver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"marketplace-checkout/internal/domain"
)

// parseOptionIDs accepts the option id shapes storefront clients send: a
// JSON array of ids, the same array encoded as a string, a comma-separated
// string, or an object keyed by variation type id. Ids may be strings or
// numbers. Missing, null and empty values yield an empty set.
func parseOptionIDs(raw json.RawMessage) (domain.OptionSet, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return domain.OptionSet{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: option_ids is not valid JSON", domain.ErrInvalidInput)
	}

	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		if strings.HasPrefix(s, "[") || strings.HasPrefix(s, "{") {
			return parseOptionIDs(json.RawMessage(s))
		}
		var ids []string
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				ids = append(ids, part)
			}
		}
		return domain.NewOptionSet(ids...), nil
	case []any:
		ids := make([]string, 0, len(t))
		for _, item := range t {
			id, err := optionID(item)
			if err != nil {
				return nil, err
			}
			ids = append(ids, id)
		}
		return domain.NewOptionSet(ids...), nil
	case map[string]any:
		ids := make([]string, 0, len(t))
		for _, item := range t {
			id, err := optionID(item)
			if err != nil {
				return nil, err
			}
			ids = append(ids, id)
		}
		return domain.NewOptionSet(ids...), nil
	}
	return nil, fmt.Errorf("%w: unsupported option_ids shape", domain.ErrInvalidInput)
}

func optionID(v any) (string, error) {
	switch t := v.(type) {
	case string:
		if s := strings.TrimSpace(t); s != "" {
			return s, nil
		}
	case json.Number:
		return t.String(), nil
	}
	return "", fmt.Errorf("%w: option ids must be non-empty strings or numbers", domain.ErrInvalidInput)
}
