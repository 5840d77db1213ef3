package main

import "github.com/vietddude/recoverd/internal/cli"

func main() {
	cli.Execute()
}
