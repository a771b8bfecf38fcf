/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package main

import "jawabbot/cmd"

func main() {
	cmd.Execute()
}
