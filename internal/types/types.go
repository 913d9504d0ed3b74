package types

import "fmt"

type Pid int32

// SessionKey identifies one lifetime of a process. Raw pids are recycled
// by the OS, so the pid alone is ambiguous; pairing it with the process
// creation time pins the key to a single incarnation.
type SessionKey struct {
	Pid        Pid
	CreateTime float64 // unix epoch seconds
}

func (k SessionKey) String() string {
	return fmt.Sprintf("%d@%.3f", k.Pid, k.CreateTime)
}
