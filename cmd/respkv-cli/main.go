// Command respkv-cli runs commands against a RESP server through respkv.
package main

func main() {
	Execute()
}
