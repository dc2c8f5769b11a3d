// Package preflight provides readiness checks for the directories and hosts
// ttsync depends on.
//
// The CLI "ttsync doctor" command runs RunAll and prints one line per check.
// Directory checks use access(2) so they reflect the effective permissions of
// the current user rather than the mode bits alone.
package preflight
