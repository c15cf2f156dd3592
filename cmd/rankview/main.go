// Command rankview runs the view-state demo and talks to a rankview server.
package main

func main() {
	Execute()
}
