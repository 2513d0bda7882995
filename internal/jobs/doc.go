// Package jobs runs the external recipe tools as OS processes.
//
// A Launcher is the single "submit and run to completion" capability the
// pipeline depends on. ProcessLauncher starts the tool locally, optionally
// behind a site wrapper such as a cluster submitter, and tees its combined
// output into a per-job log file framed by a command header and an exit
// footer. Only the process exit status decides success.
package jobs
