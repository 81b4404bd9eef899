// Package engine reduces canonical emission records into an aggregated
// inventory and derives every read projection from it.
//
// Aggregate is the only place totals are computed. Enrich moves pending
// records to calculated by attaching library factors, and the query
// projections (SummaryByScope, Trend, Sources, ByFacility) all call Aggregate
// or read its output instead of summing records themselves.
//
// Everything here is a pure function of its inputs and safe to call from
// multiple goroutines on independent data.
package engine
