package main

import "github.com/IsraelRub/EveryTriv-sub000/internal/cli"

func main() {
	cli.Execute()
}
