// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/archpkg/archpkg/cmd/archpkg"

func main() {
	cmd.Execute()
}
