package main

import "github.com/teleroom/sfu-recorder/internal/app"

func main() {
	app.Main()
}
