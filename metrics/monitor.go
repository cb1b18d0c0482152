package metrics

import (
	"time"

	"github.com/poiesic/hybridrag/core"
	"github.com/poiesic/hybridrag/search"
)

// Monitor is a search.SearchMonitor that feeds the search collectors.
type Monitor struct{}

var _ search.SearchMonitor = Monitor{}

// NewMonitor returns a Monitor.
func NewMonitor() Monitor {
	return Monitor{}
}

func (Monitor) Start(core.SearchMode, string) {}

func (Monitor) AfterLexicalSearch([]core.Hit) {}

func (Monitor) AfterVectorSearch(_ []core.Hit, err error) {
	RecordBackendFailure(err)
}

func (Monitor) Finish(mode core.SearchMode, _ []core.Hit, elapsed time.Duration) {
	SearchesTotal.WithLabelValues(string(mode)).Inc()
	SearchDuration.WithLabelValues(string(mode)).Observe(elapsed.Seconds())
}
