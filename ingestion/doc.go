// Package ingestion provides pipeline orchestration for replacing the corpus.
//
// The Pipeline type manages the ingestion workflow, including:
//   - Normalizing and validating the whole corpus before anything changes
//   - Building the lexical index
//   - Clearing the vector collection and rebuilding it in batches
//
// Vector batches are processed concurrently using a worker pool. A failing
// batch is retried, then logged and counted; it never fails the ingestion,
// so lexical search stays available when the vector backend is degraded.
//
// RecordAdapter turns loosely shaped records (JSON objects with alternate
// field names) into core.Document values at the ingestion boundary.
package ingestion
