// Package main is the entry point for the Glucose Share proxy
package main

import "github.com/mrcode/glucose-share/internal/cli"

func main() {
	cli.Execute()
}
