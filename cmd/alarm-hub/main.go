package main

import "github.com/dispatchworks/alarmhub/cmd/alarm-hub/cmd"

func main() {
	cmd.Execute()
}
