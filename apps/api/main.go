// Command api serves the canteen HTTP API.
package main

func main() {
	startWithDig()
}
