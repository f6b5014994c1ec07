// Package candidate defines the unit exchanged between generators and the
// fusion engine: a proposed password annotated with the generator that
// produced it and that generator's own rank (and probability, when the
// generator emits one). Only the rank takes part in fusion.
//
// Streams are lazy and pull-based. Consumers call Next until it reports
// exhaustion and may stop at any point; Close releases whatever the producer
// holds (a child process, an HTTP body, an open file).
package candidate
