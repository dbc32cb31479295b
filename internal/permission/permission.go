package permission

// Provider answers permission queries for input synthesis. The OS dialog
// flow lives outside this core; the pipeline only consumes the answer.
type Provider interface {
	HasAccessibilityPermission() bool
}

// Static is a fixed-answer provider, used for wiring and tests.
type Static struct {
	Accessibility bool
}

func (s Static) HasAccessibilityPermission() bool { return s.Accessibility }

// Granted assumes every permission is present.
func Granted() Provider { return Static{Accessibility: true} }
