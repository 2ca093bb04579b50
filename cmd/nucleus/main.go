// Copyright (C) The Nucleus Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package main

import "nucleus"

func main() {
	nucleus.Main()
}
