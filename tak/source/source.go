// Package source provides the definition-source boundary: implementations
// yield the sequence of business-rule definitions a run processes.
package source

import "github.com/clinsight/takforge/tak"

// Source yields the definitions for one run. Implementations must return
// definitions with stable ids and concept types drawn from the closed
// enumeration; anything else is rejected at this boundary, before the
// engine sees it.
type Source interface {
	Load() ([]tak.Definition, error)
}
