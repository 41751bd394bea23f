package jq

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/itchyny/gojq"
)

// Filter runs a jq expression over a value about to be serialized as JSON.
// A query yielding a single value returns it bare; multiple values come back
// as a slice. Typed values are normalized through a JSON round trip first
// since gojq only operates on plain maps and slices.
func Filter(data interface{}, expression string) (interface{}, error) {
	query, err := gojq.Parse(expression)
	if err != nil {
		return nil, fmt.Errorf("parsing jq expression: %w", err)
	}

	normalized, err := normalize(data)
	if err != nil {
		return nil, err
	}

	var values []interface{}
	iter := query.Run(normalized)
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if iterErr, ok := v.(error); ok {
			var halt *gojq.HaltError
			if errors.As(iterErr, &halt) && halt.Value() == nil {
				break
			}
			return nil, fmt.Errorf("running jq expression: %w", iterErr)
		}
		values = append(values, v)
	}

	switch len(values) {
	case 0:
		return nil, nil
	case 1:
		return values[0], nil
	default:
		return values, nil
	}
}

func normalize(data interface{}) (interface{}, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("normalizing value for jq: %w", err)
	}

	var normalized interface{}
	if err := json.Unmarshal(raw, &normalized); err != nil {
		return nil, fmt.Errorf("normalizing value for jq: %w", err)
	}
	return normalized, nil
}
