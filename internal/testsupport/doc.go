// Package testsupport provides shared fixtures for package tests: temp-dir
// configs, an opened store, and seeded books and readers.
package testsupport
