// Package main hosts the subline CLI entrypoint and command graph.
//
// The Cobra command tree turns terminal invocations into pipeline runs,
// subtitle corrections, job history queries and configuration scaffolding.
// It centralizes configuration resolution and logging setup so subcommands
// only deal with flags and output.
//
// Keep this package lean: add functionality to the internal packages first,
// then surface it through a command or flag here.
package main
