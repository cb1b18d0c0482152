// Package reembed rebuilds the vector collection from the document table.
//
// BatchProcessor is the unit of work shared with ingestion: embed a batch
// with retries and exponential backoff, normalize the vectors and write them
// to the store. Reembedder drives it over a whole corpus with progress
// output, which repairs a degraded ingest or moves a corpus to a new
// embedding function without re-reading the source files.
package reembed
