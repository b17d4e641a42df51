package main

import "github.com/grape-pipeline/grape/cmd"

func main() {
	cmd.Execute()
}
