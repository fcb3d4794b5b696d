// Package service orchestrates steamcmd runs on behalf of the CLI.
//
// Manager is the entry point. CheckForUpdate runs +app_status to completion
// and caches the verdict per app id for the configured TTL. Update runs
// +app_update and streams its progress:
//
//	stdout reader --ParseStatus--+
//	                             +--> events chan --> consumer --> ProgressFunc
//	stderr reader --ERROR lines--+
//
// The consumer is the only caller of the ProgressFunc and stops at the first
// Complete or Error event. Both readers keep draining their pipe until EOF,
// dropping what the consumer no longer wants, so steamcmd never blocks on a
// full pipe. The process is waited for after both readers are done.
//
// Events of one stream keep their order. There is no ordering between
// stdout and stderr events.
//
// An update succeeds only when a Complete event was seen and steamcmd exited
// with status 0. A successful update invalidates the cached verdict of its
// app. Canceling the context kills steamcmd and its children.
//
// Supervisor runs Manager on a gocron schedule for `updateio run`.
package service
