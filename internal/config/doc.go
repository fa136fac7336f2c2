// Package config defines the format-agnostic pipeline model and the Loader
// interface that produces it.
//
// The model keeps every per-run expression (output paths, commands, shard
// counts) unevaluated. The builder evaluates them once a run request supplies
// samples, reference data, and directories. Concrete loaders, such as the
// HCL one, live in separate packages.
package config
