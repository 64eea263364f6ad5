package main

import "context"

func main() {
	app := mustBootstrapOrdersAPI()
	defer app.Close()

	if err := app.Run(); err != nil && err != context.Canceled {
		panic(err)
	}
}
