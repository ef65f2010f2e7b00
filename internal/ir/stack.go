package ir

// Stack is one synthesized unit: a name and its serialized configuration
// document (Terraform JSON).
type Stack struct {
	Name string
	JSON string
}
