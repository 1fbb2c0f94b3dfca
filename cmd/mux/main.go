package main

import "mux/internal/mux"

func main() {
	mux.Main()
}
