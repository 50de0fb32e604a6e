// Package queue persists pipeline work items in SQLite.
//
// The store is the only resource shared by every thread in the process, so
// all access happens through short-lived operations that commit before
// returning. Nothing in this package holds the database across an external
// operation.
package queue
