// Package cron runs periodic maintenance jobs behind a Redis lock so only one
// worker replica acts per cycle.
package cron

import "context"

// Job is one unit of periodic work.
type Job interface {
	Name() string
	Run(ctx context.Context) (int, error)
}

// Jobs is an ordered job list. Nil entries are skipped.
type Jobs []Job

// Add appends job unless it is nil.
func (j Jobs) Add(job Job) Jobs {
	if job == nil {
		return j
	}
	return append(j, job)
}
