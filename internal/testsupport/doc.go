// Package testsupport holds fixtures shared by package tests: temp-dir
// configurations, document writers, a canned asset server and index helpers.
package testsupport
