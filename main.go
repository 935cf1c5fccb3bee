package main

import "github.com/KaramelBytes/studydeck-cli/cmd"

func main() {
	cmd.Execute()
}
