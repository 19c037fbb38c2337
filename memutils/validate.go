package memutils

// Validatable is implemented by heaps and chunk providers that can audit their own bookkeeping.
// Validate returns a descriptive error for the first inconsistency found.
type Validatable interface {
	Validate() error
}
