package search

import (
	"time"

	"github.com/domwxyz/marxist-search/core"
)

// SearchMonitor observes the stages of query execution. Implementations
// must be safe for concurrent use; the engine runs queries on a worker
// pool.
type SearchMonitor interface {
	// QueryStarted fires once per accepted query.
	QueryStarted(query string)

	// QueryParsed fires after parsing, before retrieval.
	QueryParsed(parsed *core.ParsedQuery)

	// CandidatesRetrieved fires with the raw retrieval count and the count
	// surviving metadata filtering.
	CandidatesRetrieved(retrieved, filtered int)

	// QueryFinished fires with the final result count and elapsed time,
	// whether or not the query produced results.
	QueryFinished(results int, elapsed time.Duration)
}

type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (noopMonitor) QueryStarted(string)              {}
func (noopMonitor) QueryParsed(*core.ParsedQuery)    {}
func (noopMonitor) CandidatesRetrieved(int, int)     {}
func (noopMonitor) QueryFinished(int, time.Duration) {}
