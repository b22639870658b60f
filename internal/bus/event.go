package bus

import "time"

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// Change kinds are "change.<table>.<op>".
const ChangePrefix = "change."

// ChangeKind builds the event kind for a row-level change.
func ChangeKind(table, op string) string {
	return ChangePrefix + table + "." + op
}
