package main

import (
	"github.com/MintBay/market-engine/internal/daemon"
)

func main() {
	daemon.Execute()
}
