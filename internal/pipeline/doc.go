// Package pipeline runs the two-stage rip and encode workflow: a dispatcher
// that persists submitted jobs, wake signals, and one long-lived worker per
// stage claiming work from the queue store in insertion order.
package pipeline
