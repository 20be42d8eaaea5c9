// Package alpnfix turns off grpc-go's ALPN check so the full-node client can reach gateways
// fronted by TLS terminators that do not advertise h2.
// It must be imported for side effects before the client dials: _ "github.com/ton-vote/verifier/internal/alpnfix"
package alpnfix

import "os"

func init() {
	if _, set := os.LookupEnv("GRPC_ENFORCE_ALPN_ENABLED"); !set {
		os.Setenv("GRPC_ENFORCE_ALPN_ENABLED", "false")
	}
}
