package module

import "fmt"

// Status is the lifecycle state a module reports about itself.
type Status int32

const (
	// Dead modules run no code. Every module starts here.
	Dead Status = iota
	// Starting covers both start-up and "started but not ready yet".
	Starting
	// Ready modules accept messages and may be killed.
	Ready
	// ShuttingDown modules are stopping their work.
	ShuttingDown
)

// Started is the same transitional state as Starting.
const Started = Starting

var statusNames = [...]string{
	Dead:         "DEAD",
	Starting:     "STARTING",
	Ready:        "READY",
	ShuttingDown: "SHUTTING_DOWN",
}

func (s Status) String() string {
	if s >= 0 && int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("Status(%d)", int32(s))
}

// Statuses lists every status in declaration order.
func Statuses() []Status {
	return []Status{Dead, Starting, Ready, ShuttingDown}
}

// ParseStatus is the inverse of String. "STARTED" parses as Starting.
func ParseStatus(s string) (Status, error) {
	if s == "STARTED" {
		return Starting, nil
	}
	for i, name := range statusNames {
		if name == s {
			return Status(i), nil
		}
	}
	return Dead, fmt.Errorf("%w: unknown status %q", ErrInvalidArgument, s)
}
