package consumer

import (
	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/samber/lo"
)

// HeaderValue extracts the value of the named record header, or "" when absent.
func HeaderValue(headers []kafka.Header, key string) string {
	header, found := lo.Find(headers, func(h kafka.Header) bool {
		return h.Key == key
	})
	if !found {
		return ""
	}
	return string(header.Value)
}
