// Package fusion merges the candidate streams of several generators for one
// identity into a single deduplicated ranking.
//
// Every source is read by its own prefetching goroutine into a bounded
// look-ahead window sized in proportion to the source's priority, so a slow
// generator never holds back the others' production. The engine itself is the
// only consumer: it visits sources in a fixed weighted round-robin order
// (descending priority, then name), which keeps the result deterministic for
// identical inputs regardless of scheduling.
//
// A candidate's fused rank is the best (lowest) source rank divided by that
// source's priority over all sources that proposed it. Pulling stops once the
// ranking holds enough entries within the strength bounds for the selector to
// fill its budget. The entry cap and source exhaustion end it earlier. A source
// whose stream fails is withdrawn from the ranking.
package fusion
