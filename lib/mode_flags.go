package lib

// CheckStrictness indicates how the "check" mode should behave when it
// encounters an error.
type CheckStrictness int

const (
	CrashOnError CheckStrictness = iota
	WarnOnError
)

func (s CheckStrictness) String() string {
	switch s {
	case CrashOnError:
		return "crash"
	case WarnOnError:
		return "warn"
	}
	return "unknown"
}
