// Package async runs independent remote operations concurrently.
//
// [RunParallel] backs the multi-argument commands (killing several jobs,
// removing several disks or secrets) so one slow request does not
// serialize the rest, and reports every failure rather than the first.
package async
