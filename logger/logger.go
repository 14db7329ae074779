package logger

// Logger receives diagnostics from lockers. Warn is used for conditions that
// leave a lock in a degraded state, such as an expired critical section or a
// lost lease.
type Logger interface {
	Info(...any)
	Debug(...any)
	Warn(...any)
	Error(...any)
}
