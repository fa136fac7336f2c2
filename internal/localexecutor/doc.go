// Package localexecutor provides the in-process implementation of the
// executor.Executor interface.
//
// A single coordinator goroutine owns every graph transition. It asks the
// scheduler for ready nodes, marks them Running, and hands them to a fixed
// pool of workers. A worker builds the node's work unit with a fresh token,
// runs it in-process or through the configured Submitter, commits the temp
// outputs, and verifies the final outputs with the completion oracle. The
// coordinator then records the outcome and skips every node that can no
// longer run because an upstream node failed.
//
// A failure never stops independent branches unless FailFast is set. There
// is no retry: the next invocation re-plans and re-runs exactly the nodes
// that are still incomplete.
package localexecutor
