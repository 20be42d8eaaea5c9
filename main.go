package main

import (
	_ "github.com/ton-vote/verifier/internal/alpnfix" // Full-node gateways behind HTTP/1 proxies do not negotiate ALPN

	"github.com/ton-vote/verifier/cmd/verifier"
)

func main() {
	verifier.Execute()
}
