// Package batch splits large record sets into fixed-size chunks.
//
// The normalizer feeds ERP exports through a Processor so memory stays
// proportional to the chunk size, cancellation is checked between chunks and
// callers can report progress while a long sync is running.
package batch
