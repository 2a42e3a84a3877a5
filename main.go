package main

import "github.com/sightread/sightread/cmd"

func main() {
	cmd.Execute()
}
