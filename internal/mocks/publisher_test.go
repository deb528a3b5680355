package mocks

import (
	"relay-service/internal/rabbitmq"
)

// The assertion lives in a test file so the mocks package does not import
// rabbitmq at build time, which would close an import cycle through
// telemetry's tests (telemetry -> mocks -> rabbitmq -> telemetry).
var _ rabbitmq.Publisher = (*PublisherMock)(nil)
