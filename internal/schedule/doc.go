// Package schedule provides utilities for cron expression handling and deferred execution.
//
// Cron functions parse and validate cron expressions and compute upcoming run times.
// RunAt executes a function once at a specified time and Every runs one on a
// cron schedule, both until their context is done.
package schedule
