package db

// Command names used as Error.Op.
const (
	OpPing   = "PING"
	OpMGet   = "MGET"
	OpIncrBy = "INCRBY"
	OpExpire = "EXPIRE"
)

// Error is a failed store command.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return "db " + e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }
