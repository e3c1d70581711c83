// Package drivers groups database/sql driver registrations behind one
// import so binaries opt into the heavy dependencies explicitly while
// unit tests of the query builders stay lightweight.
package drivers

// Ready is a no-op. Calling it from an init function in a main package
// makes the blank driver imports below look intentional to the reader
// and to tooling that flags unused imports.
func Ready() {}
