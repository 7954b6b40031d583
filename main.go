package main

import "github.com/ValentinKolb/kvcollections/cmd"

func main() {
	cmd.Execute()
}
