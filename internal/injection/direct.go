package injection

import "context"

// UnavailableSetter is the default direct-set backend. No portable
// accessibility set-text API exists, so the direct strategy only works when
// the embedder wires a platform-specific FieldSetter.
type UnavailableSetter struct{}

func (UnavailableSetter) Available() bool { return false }

func (UnavailableSetter) SetText(context.Context, string) error {
	return ErrDirectUnavailable
}

// AssumeEditableProbe is the default focus probe: it reports an anonymous
// editable field. Platform embedders replace it with a real accessibility
// query.
type AssumeEditableProbe struct{}

func (AssumeEditableProbe) Active() (Field, error) {
	return Field{Editable: true}, nil
}
