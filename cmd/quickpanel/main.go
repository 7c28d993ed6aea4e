// Package main provides the CLI entrypoint for quickpanel.
package main

func main() {
	Execute()
}
