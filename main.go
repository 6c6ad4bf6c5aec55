package main

import "github.com/dt-demo-gcp/authserver/cmd"

func main() {
	cmd.Execute()
}
