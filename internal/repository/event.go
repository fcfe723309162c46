// SPDX-License-Identifier: MPL-2.0

package repository

import (
	"bytes"
	"os"
)

type (
	// BuildEvent is dispatched before a build. Any listener may skip it.
	BuildEvent struct {
		view    *View
		skipped bool
	}

	// Listener observes a build before it materializes anything.
	Listener func(*BuildEvent)
)

// View returns the merged view about to be built.
func (e *BuildEvent) View() *View { return e.view }

// SkipBuild vetoes the build. Later listeners still run.
func (e *BuildEvent) SkipBuild() { e.skipped = true }

// IsSkipped reports whether a listener vetoed the build.
func (e *BuildEvent) IsSkipped() bool { return e.skipped }

// SkipIfUnchanged returns a listener that skips the build when the output of
// m already holds exactly the encoded view.
func SkipIfUnchanged(m *FileMaterializer) Listener {
	return func(e *BuildEvent) {
		want, err := m.Encode(e.View())
		if err != nil {
			return
		}
		have, err := os.ReadFile(m.OutputPath())
		if err != nil {
			return
		}
		if bytes.Equal(want, have) {
			e.SkipBuild()
		}
	}
}
