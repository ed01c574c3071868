// Binary api implements the gRPC service uda.ClassificationService.
package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/mtraver/envtools"
	"google.golang.org/grpc"

	"github.com/envdash/uda/logging"
	"github.com/envdash/uda/poller"
	"github.com/envdash/uda/rpc"
	"github.com/envdash/uda/source"
)

var (
	port     int
	pollSpec string
)

func init() {
	flag.IntVar(&port, "p", 9090, "port on which the gRPC server will listen")
	flag.StringVar(&pollSpec, "spec", poller.DefaultSpec, "cron spec on which to poll the source")

	flag.Usage = func() {
		message := `usage: api [options]

Environment (required):
  UDA_SOURCE_URL
	base URL of the HTTP reading source

Environment (optional):
  UDA_SOURCE_TOKEN
	bearer token sent to the reading source

Options:
`

		fmt.Fprint(flag.CommandLine.Output(), message)
		flag.PrintDefaults()
	}
}

func main() {
	flag.Parse()

	logger := logging.New(os.Getenv("UDA_LOG_LEVEL"), os.Getenv("UDA_LOG_FORMAT"))

	src := source.NewHTTPSource(envtools.MustGetenv("UDA_SOURCE_URL"), os.Getenv("UDA_SOURCE_TOKEN"), 10*time.Second)
	p := poller.New(src, poller.WithLogger(logger))
	if err := p.Start(pollSpec); err != nil {
		logger.Error("failed to start poller", logging.Err(err))
		os.Exit(1)
	}

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		logger.Error("failed to listen", logging.Err(err))
		os.Exit(1)
	}

	grpcServer := grpc.NewServer()
	rpc.RegisterClassificationServer(grpcServer, &rpc.Server{Poller: p})

	logger.Info("gRPC server listening", "port", port)
	if err := grpcServer.Serve(lis); err != nil {
		logger.Error("gRPC server failed", logging.Err(err))
		os.Exit(1)
	}
}
