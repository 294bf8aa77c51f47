// Package stream runs the publication loop: on every tick of the clock it
// advances each symbol, fans the tick out to subscribers and mirrors it to
// the configured side channels.
package stream
