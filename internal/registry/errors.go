package registry

import "fmt"

// UnknownTypeError is returned when a configuration node names a type tag
// that no concrete subtype registered for its base kind.
type UnknownTypeError struct {
	Kind string
	Tag  string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("registry: unknown %s type %q", e.Kind, e.Tag)
}

// UncastableArgumentError is returned when a kwarg's value cannot be coerced
// to the type its schema field declares.
type UncastableArgumentError struct {
	Kind  string
	Tag   string
	Field string
	Err   error
}

func (e *UncastableArgumentError) Error() string {
	return fmt.Sprintf("registry: %s %q field %q: %v", e.Kind, e.Tag, e.Field, e.Err)
}

func (e *UncastableArgumentError) Unwrap() error { return e.Err }

// ReservedKeyUsedError is returned when kwargs uses one of the reserved
// top-level keys ("type", "kwargs") as a schema field name.
type ReservedKeyUsedError struct {
	Kind string
	Tag  string
	Key  string
}

func (e *ReservedKeyUsedError) Error() string {
	return fmt.Sprintf("registry: %s %q declares reserved key %q", e.Kind, e.Tag, e.Key)
}

// UnexpectedArgumentError is returned when a schema field is marked
// forbidden (Coerce == Forbidden) but a value was supplied for it anyway.
type UnexpectedArgumentError struct {
	Kind  string
	Tag   string
	Field string
}

func (e *UnexpectedArgumentError) Error() string {
	return fmt.Sprintf("registry: %s %q field %q is not accepted", e.Kind, e.Tag, e.Field)
}

// UnknownTemplateError is returned when a `template` watch names a
// template that was never registered by the configuration's top-level
// `templates` section.
type UnknownTemplateError struct {
	Name string
}

func (e *UnknownTemplateError) Error() string {
	return fmt.Sprintf("registry: template %q is not registered", e.Name)
}

// MissingRequiredVariableError is returned when a `template` watch's
// `requires` list names a variable its `variables` kwargs never supply.
type MissingRequiredVariableError struct {
	Template string
	Variable string
}

func (e *MissingRequiredVariableError) Error() string {
	return fmt.Sprintf("registry: template %q missing required variable %q", e.Template, e.Variable)
}
