// Package executor runs external commands for doarch.
//
// Everything doarch does to the machine goes through the Runner
// interface: package installs, builds under the unprivileged build
// user, systemd and firewalld calls. Commands never pass through a
// shell; arguments travel as argv and privilege dropping uses process
// credentials. The Scripted runner records and fakes invocations for
// tests.
package executor
