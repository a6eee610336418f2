// Package process runs short-lived child processes and streams their
// output line by line.
//
// It backs the run_system_command action: the hub spawns a script, copies
// every stdout line into the journal and logs stderr. A spawn failure is
// an error; a non-zero exit is reported in the Result, not as an error.
//
// Example usage:
//
//	res, err := process.Run(ctx, process.Command{
//	    Name:    "backup",
//	    Binary:  "/srv/grayhub/scripts/backup.sh",
//	    WorkDir: "/srv/grayhub/scripts",
//	}, func(stream process.Stream, line string) {
//	    journal.Record(ctx, "command", "backup", line)
//	})
//	if err != nil {
//	    return err // could not start
//	}
//	if res.ExitCode != 0 {
//	    log.Warn("script failed", "exit_code", res.ExitCode)
//	}
//
// Children run in their own process group; when ctx is cancelled the whole
// group receives SIGTERM, then SIGKILL after GracefulTimeout.
package process
