package main

import "github.com/goplus/rtbuild/cmd/rtbuild/internal"

func main() {
	internal.Execute()
}
