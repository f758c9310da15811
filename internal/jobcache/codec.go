package jobcache

import (
	"encoding/json"

	"github.com/bardlex/goasic/internal/messaging"
	"github.com/bardlex/goasic/pkg/errors"
)

func marshalJob(msg messaging.JobMessage) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeValidation, "jobcache_marshal",
			"failed to marshal job message").
			WithContext("job_id", msg.JobID)
	}
	return data, nil
}

func unmarshalJob(data []byte) (messaging.JobMessage, error) {
	var msg messaging.JobMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return messaging.JobMessage{}, errors.Wrap(err, errors.ErrorTypeValidation, "jobcache_unmarshal",
			"failed to unmarshal cached job").
			WithContext("payload_size", len(data))
	}
	return msg, nil
}
