package shop

type Status string

const (
	StatusNew       Status = "new"
	StatusAccepted  Status = "accepted"
	StatusDeclined  Status = "declined"
	StatusCancelled Status = "cancelled"
)

// accepted/declined/cancelled semuanya terminal; tidak ada jalan keluar.
var validNext = map[Status]map[Status]bool{
	StatusNew:       {StatusAccepted: true, StatusDeclined: true, StatusCancelled: true},
	StatusAccepted:  {},
	StatusDeclined:  {},
	StatusCancelled: {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

func (s Status) Terminal() bool {
	next, ok := validNext[s]
	return ok && len(next) == 0
}

func (s Status) Valid() bool {
	_, ok := validNext[s]
	return ok
}
