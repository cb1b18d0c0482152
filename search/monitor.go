package search

import (
	"time"

	"github.com/poiesic/hybridrag/core"
)

// SearchMonitor provides hooks to observe the search process.
// Implementations must be safe for concurrent use: in hybrid mode the
// lexical and vector callbacks run on different goroutines.
type SearchMonitor interface {
	Start(mode core.SearchMode, query string)
	AfterLexicalSearch(hits []core.Hit)
	AfterVectorSearch(hits []core.Hit, err error)
	Finish(mode core.SearchMode, hits []core.Hit, elapsed time.Duration)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ core.SearchMode, _ string)                       {}
func (n *noopMonitor) AfterLexicalSearch(_ []core.Hit)                         {}
func (n *noopMonitor) AfterVectorSearch(_ []core.Hit, _ error)                 {}
func (n *noopMonitor) Finish(_ core.SearchMode, _ []core.Hit, _ time.Duration) {}
