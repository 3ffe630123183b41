package main

import "github.com/itc-kingsavage/savage-scanner/cmd/scanner/cmd"

func main() {
	cmd.Execute()
}
