package order

// Status is the fulfillment state of an order. The lifecycle is strictly
// linear: Pending -> Shipped -> Delivered. No skipping, no regression.
type Status string

const (
	StatusPending   Status = "Pending"
	StatusShipped   Status = "Shipped"
	StatusDelivered Status = "Delivered"
)

// ParseStatus maps a wire label to a Status. Unrecognized labels (including
// different casing) report false.
func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusPending, StatusShipped, StatusDelivered:
		return Status(s), true
	}
	return "", false
}

// Next returns the successor status, or false when s is terminal.
func (s Status) Next() (Status, bool) {
	switch s {
	case StatusPending:
		return StatusShipped, true
	case StatusShipped:
		return StatusDelivered, true
	}
	return "", false
}
