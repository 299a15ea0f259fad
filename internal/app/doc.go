// Package app contains the driver: it checks the compiler backend, builds
// the executor and engine, feeds every input path through its handler and
// prints the run summary. It is decoupled from any specific entrypoint.
package app
