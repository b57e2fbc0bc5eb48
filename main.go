package main

import "github.com/khrees2412/jobsift/cmd"

func main() {
	cmd.Execute()
}
