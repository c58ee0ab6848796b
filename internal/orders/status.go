package orders

type Status string

const (
	StatusOrdered   Status = "ordered"
	StatusDelivered Status = "delivered"
)

// Single one-way edge: ordered -> delivered. Delivered is terminal.
var validNext = map[Status]map[Status]bool{
	StatusOrdered:   {StatusDelivered: true},
	StatusDelivered: {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

func ValidStatus(s Status) bool {
	_, ok := validNext[s]
	return ok
}
