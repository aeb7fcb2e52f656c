package messaging

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

const deadLetterSuffix = ".DLT"

const (
	HeaderExceptionMessage    = "x-exception-message"
	HeaderExceptionStacktrace = "x-exception-stacktrace"
	HeaderOriginalTopic       = "x-original-topic"
	HeaderOriginalPartition   = "x-original-partition"
	HeaderOriginalOffset      = "x-original-offset"
)

// ErrorCategory is the coarse reason a message ended up in a dead-letter topic.
type ErrorCategory string

const (
	ErrorSerialization        ErrorCategory = "SERIALIZATION"
	ErrorDownstreamDependency ErrorCategory = "DOWNSTREAM_DEPENDENCY"
	ErrorTimeout              ErrorCategory = "TIMEOUT"
	ErrorValidation           ErrorCategory = "VALIDATION"
	ErrorBusinessLogic        ErrorCategory = "BUSINESS_LOGIC"
	ErrorUnknown              ErrorCategory = "UNKNOWN"
)

// DeadLetterTopic names the topic that collects the failures of topic.
func DeadLetterTopic(topic string) string {
	return topic + deadLetterSuffix
}

// ClassifyError buckets an exception message. The first matching rule wins.
func ClassifyError(text string) ErrorCategory {
	t := strings.ToLower(text)
	switch {
	case t == "":
		return ErrorUnknown
	case strings.Contains(t, "serialization"):
		// also matches "deserialization"
		return ErrorSerialization
	case strings.Contains(t, "database"), strings.Contains(t, "connection"), strings.Contains(t, "unavailable"):
		return ErrorDownstreamDependency
	case strings.Contains(t, "timeout"), strings.Contains(t, "deadline"):
		return ErrorTimeout
	case strings.Contains(t, "validation"), strings.Contains(t, "constraint"):
		return ErrorValidation
	default:
		return ErrorBusinessLogic
	}
}

// errorChain renders each level of the wrapped error chain on its own line.
func errorChain(err error) string {
	var b strings.Builder
	for e := err; e != nil; e = errors.Unwrap(e) {
		if b.Len() > 0 {
			b.WriteString("\ncaused by ")
		}
		fmt.Fprintf(&b, "%T: %s", e, e.Error())
	}
	return b.String()
}

func deadLetterMessage(msg Message, cause error) Message {
	headers := make(map[string]string, len(msg.Headers)+5)
	for k, v := range msg.Headers {
		headers[k] = v
	}
	headers[HeaderExceptionMessage] = cause.Error()
	headers[HeaderExceptionStacktrace] = errorChain(cause)
	headers[HeaderOriginalTopic] = msg.Topic
	headers[HeaderOriginalPartition] = strconv.Itoa(msg.Partition)
	headers[HeaderOriginalOffset] = strconv.FormatInt(msg.Offset, 10)

	return Message{
		Topic:   DeadLetterTopic(msg.Topic),
		Key:     msg.Key,
		Value:   msg.Value,
		Headers: headers,
	}
}

// DeadLetterHandler logs what arrives on a dead-letter topic so an operator can replay it.
type DeadLetterHandler struct {
	logger *zap.Logger
}

func NewDeadLetterHandler(logger *zap.Logger) *DeadLetterHandler {
	return &DeadLetterHandler{logger: logger}
}

// Handle never fails, so dead letters are never redelivered.
func (h *DeadLetterHandler) Handle(_ context.Context, msg Message) error {
	exception := msg.Headers[HeaderExceptionMessage]
	h.logger.Error("☠️ Dead letter received",
		zap.String("category", string(ClassifyError(exception))),
		zap.String("dlt", msg.Topic),
		zap.String("original_topic", msg.Headers[HeaderOriginalTopic]),
		zap.String("original_partition", msg.Headers[HeaderOriginalPartition]),
		zap.String("original_offset", msg.Headers[HeaderOriginalOffset]),
		zap.ByteString("key", msg.Key),
		zap.String("exception", exception),
		zap.String("cause_chain", msg.Headers[HeaderExceptionStacktrace]),
		zap.Int("payload_bytes", len(msg.Value)),
	)
	return nil
}
