package supervisor

import (
	"errors"
	"fmt"
)

// ErrKilled matches every KilledProcessError via errors.Is.
var ErrKilled = errors.New("process killed")

// KilledProcessError is returned by Start, Terminate and Kill once a process
// has been killed. Killed is terminal for the lifetime of a Process.
type KilledProcessError struct {
	Name string
}

func (e *KilledProcessError) Error() string {
	return fmt.Sprintf("process %s has been killed", e.Name)
}

// Is reports whether target is ErrKilled.
func (e *KilledProcessError) Is(target error) bool {
	return target == ErrKilled
}
