// SPDX-License-Identifier: GPL-3.0-or-later

package main

import "os"

func main() {
	os.Exit(Run(os.Args[1:], os.Stderr))
}
