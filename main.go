/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package main

import "botloop/cmd"

func main() {
	cmd.Execute()
}
