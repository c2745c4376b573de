/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>

*/
package main

import "github.com/liyang960414/erp-sub001/cmd"

func main() {
	cmd.Execute()
}
