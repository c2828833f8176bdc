package settlement

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/tripovia/travel-payments/internal/domain"
)

// Booking metadata is a free-form blob resolved only inside the matching
// handler. Missing or malformed fields fail fast with a descriptive
// validation error.

func metaString(meta map[string]interface{}, key string) (string, error) {
	v, ok := meta[key].(string)
	if !ok || v == "" {
		return "", errors.Wrapf(domain.ErrValidation, "metadata field %q missing or not a string", key)
	}
	return v, nil
}

func metaUUID(meta map[string]interface{}, key string) (uuid.UUID, error) {
	s, err := metaString(meta, key)
	if err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, errors.Wrapf(domain.ErrValidation, "metadata field %q is not a uuid", key)
	}
	return id, nil
}

func metaInt(meta map[string]interface{}, key string) (int, error) {
	switch v := meta[key].(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64: // JSON numbers decode as float64
		if v != float64(int(v)) {
			return 0, errors.Wrapf(domain.ErrValidation, "metadata field %q is not an integer", key)
		}
		return int(v), nil
	default:
		return 0, errors.Wrapf(domain.ErrValidation, "metadata field %q missing or not a number", key)
	}
}

func metaTime(meta map[string]interface{}, key string) (time.Time, error) {
	s, err := metaString(meta, key)
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, errors.Wrapf(domain.ErrValidation, "metadata field %q is not RFC3339", key)
	}
	return t, nil
}
