// Package process provides the runtime backend that launches supervised
// children as local operating system processes.
//
// Two strategies exist for observing a child's exit. The native strategy
// blocks in exec.Cmd.Wait on a dedicated goroutine. The polling strategy
// checks the child on a fixed 500ms interval (wait4 with WNOHANG on Unix,
// GetExitCodeProcess on Windows) and is kept for hosts where a blocking wait
// is undesirable. The strategy is resolved once per spawn and never changes
// for the lifetime of a handle.
//
// Exit codes follow the POSIX convention: a child terminated by signal N
// reports -N. Windows has no signal deaths; a forceful kill there is
// implemented with TerminateProcess and surfaces as exit status 1.
//
// Children are placed in their own process group (Unix) or console process
// group (Windows) so that terminal-generated interrupts reach them only
// through the supervisor's signal relay.
package process
