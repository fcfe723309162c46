// SPDX-License-Identifier: MPL-2.0

package cueutil

// DefaultMaxFileSize caps a descriptor or config file at 5 MiB. Descriptors
// ship inside third-party packages and are rejected before evaluation when
// they exceed it.
const DefaultMaxFileSize int64 = 5 << 20

// anonymousFile names the input in diagnostics when WithFilename is not given.
const anonymousFile = "<input>"

type (
	decodeSettings struct {
		maxFileSize int64
		concrete    bool
		filename    string
	}

	// Option adjusts how a single document is validated and decoded.
	Option func(*decodeSettings)
)

// settingsFrom applies opts over the defaults: size capped at
// DefaultMaxFileSize, concrete values required, anonymous file name.
func settingsFrom(opts []Option) decodeSettings {
	s := decodeSettings{maxFileSize: DefaultMaxFileSize, concrete: true}
	for _, opt := range opts {
		opt(&s)
	}
	if s.maxFileSize <= 0 {
		s.maxFileSize = DefaultMaxFileSize
	}
	if s.filename == "" {
		s.filename = anonymousFile
	}
	return s
}

// WithMaxFileSize replaces the size cap. Zero or a negative value keeps
// DefaultMaxFileSize.
func WithMaxFileSize(size int64) Option {
	return func(s *decodeSettings) {
		s.maxFileSize = size
	}
}

// WithConcrete(false) lets fields stay abstract after unification.
// resmerge.config.cue is decoded this way since every key in it is optional.
func WithConcrete(concrete bool) Option {
	return func(s *decodeSettings) {
		s.concrete = concrete
	}
}

// WithFilename sets the path reported in size and validation errors.
func WithFilename(name string) Option {
	return func(s *decodeSettings) {
		s.filename = name
	}
}
