// Package cli provides the interactive handlewatch operator console.
//
// The console logs in with an operator id and access key, starts a
// background watcher that prints daemon events (freed handles, directory
// authorization prompts), and runs a REPL for managing the watch list and
// the monitoring loop.
//
// When the daemon asks for a credential (phone number, login code or 2FA
// password) the prompt is shown in the console. The next line that is not a
// command is forwarded as the answer; "password" reads the 2FA password
// without echo.
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
