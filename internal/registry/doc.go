// Package registry implements the typed capability catalog used to plug
// alarm sources, jobs and address filters into the pipeline.
//
// Each capability interface gets its own Registry instance; implementations
// are registered at startup from explicit wiring lists and resolved at
// runtime by their configuration alias. There is no reflection-based
// discovery on purpose.
package registry
