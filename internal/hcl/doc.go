// Package hcl provides the HCL implementation of the config.Loader
// interface. It parses pipeline files, decodes the block structure with
// gohcl, and translates it into the format-agnostic config.Pipeline. Every
// per-run expression is kept raw for the builder to evaluate.
//
// The default Callset pipeline is compiled into the binary and available
// through LoadDefault.
package hcl
