// SPDX-License-Identifier: MPL-2.0

// Package config handles project configuration using Viper with CUE as the file format.
//
// Configuration is read from resmerge.config.cue in the project root, validated
// against the embedded #Config schema (config_schema.cue), and layered over the
// defaults returned by DefaultConfig. Environment variables prefixed with
// RESMERGE_ override both. String values may reference other keys with
// {$key} placeholders, e.g. "{$state_dir}/repository"; they are expanded after
// all layers are merged.
package config
