package memutils

// Validatable is anything that can check its own structural consistency, such as a heap walking
// its block chain. DebugValidate panics on the error it returns.
type Validatable interface {
	Validate() error
}
