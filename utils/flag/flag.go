/*
flag Package set up cli flags shared across binaries

Usage:

	Flags listed in this package are shared across boundaries and service-agnostic
	For service dependent flags please define in their respective package
*/

package flag

import (
	"flag"
)

const (
	FeedGateway = "feed_gateway"
)

var (
	IsDevelopment *bool
	ServiceName   *string
	AppConfigPath *string
)

func init() {
	IsDevelopment = flag.Bool("dev", true, "set to true if the current run is for development. default value is true")
	ServiceName = flag.String("service", FeedGateway, "name the binary reports itself as, e.g. 'feed_gateway'")
	AppConfigPath = flag.String("app_config", "feed_gateway.yaml", "path to the yaml application config")
}

// Parse must be called from main after all packages had a chance to register
// their flags. Calling it from init breaks `go test`, which registers its own
// flags after package initialization.
func Parse() {
	flag.Parse()
}
