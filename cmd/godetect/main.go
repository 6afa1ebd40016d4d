package main

import "github.com/MeKo-Tech/godetect/cmd/godetect/cmd"

func main() {
	cmd.Execute()
}
