// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/resmerge/resmerge/cmd/resmerge"

func main() {
	cmd.Execute()
}
