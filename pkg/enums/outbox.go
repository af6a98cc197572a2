package enums

// OutboxAggregateType identifies the aggregate an outbox row belongs to.
type OutboxAggregateType string

const AggregateOrder OutboxAggregateType = "order"

func (a OutboxAggregateType) IsValid() bool { return known(a, AggregateOrder) }

// OutboxEventType names an event carried on the order-events queue.
type OutboxEventType string

const EventOrderCreated OutboxEventType = "order_created"

func (e OutboxEventType) String() string { return string(e) }

func (e OutboxEventType) IsValid() bool { return known(e, EventOrderCreated) }

// OutboxDLQErrorReason says why the publisher gave up on a row.
type OutboxDLQErrorReason string

const (
	// OutboxDLQReasonMaxAttempts: retries were exhausted.
	OutboxDLQReasonMaxAttempts OutboxDLQErrorReason = "max_attempts"
	// OutboxDLQReasonNonRetryable: the row or the sink rejected the event outright.
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)

func (r OutboxDLQErrorReason) IsValid() bool {
	return known(r, OutboxDLQReasonMaxAttempts, OutboxDLQReasonNonRetryable)
}
