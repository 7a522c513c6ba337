// Command mmuctl boots the address-space allocators on a platform description
// and runs allocation scripts against them.
package main

func main() {
	execute()
}
