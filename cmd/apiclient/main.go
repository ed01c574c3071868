// Binary apiclient is a command line tool for calling the gRPC service
// uda.ClassificationService.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/envdash/uda/rpc"
)

var (
	key   string
	token string

	domain string
	metric string
	value  float64
)

func devices(ctx context.Context, client *rpc.Client) (*structpb.Struct, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return client.GetDevices(ctx, &emptypb.Empty{})
}

func latest(ctx context.Context, client *rpc.Client, deviceID string) (*structpb.Struct, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return client.GetLatest(ctx, wrapperspb.String(deviceID))
}

func classify(ctx context.Context, client *rpc.Client) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(map[string]any{"domain": domain, "metric": metric, "value": value})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return client.Classify(ctx, in)
}

func printMessage(m proto.Message) {
	fmt.Println(protojson.MarshalOptions{Multiline: true}.Format(m))
}

func init() {
	flag.StringVar(&key, "k", "", "API key")
	flag.StringVar(&token, "t", "", "JWT")
	flag.StringVar(&domain, "domain", "", "classify a value in this domain instead of listing devices")
	flag.StringVar(&metric, "metric", "", "metric of the value to classify")
	flag.Float64Var(&value, "value", 0, "value to classify")

	flag.Usage = func() {
		message := `usage: apiclient [options] ip

Positional Arguments (required):
  ip
	the IP address of the server, including the port

Options:
`

		fmt.Fprint(flag.CommandLine.Output(), message)
		flag.PrintDefaults()
	}
}

func main() {
	flag.Parse()

	if len(flag.Args()) != 1 {
		flag.Usage()
		os.Exit(2)
	}
	serverAddr := flag.Args()[0]

	// Set up authentication metadata.
	ctx := context.Background()
	if key != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "x-api-key", key)
	}
	if token != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "Authorization", fmt.Sprintf("Bearer %s", token))
	}

	conn, err := grpc.Dial(serverAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		fmt.Printf("Failed to dial: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()

	client := rpc.NewClient(conn)

	if domain != "" {
		res, err := classify(ctx, client)
		if err != nil {
			fmt.Printf("Failed to Classify: %v\n", err)
			os.Exit(1)
		}
		printMessage(res)
		return
	}

	fmt.Println("Calling GetDevices")
	fmt.Println("------------------")
	devs, err := devices(ctx, client)
	if err != nil {
		fmt.Printf("Failed to GetDevices: %v\n", err)
		os.Exit(1)
	}
	printMessage(devs)

	fmt.Println("")

	fmt.Println("Calling GetLatest")
	fmt.Println("-----------------")
	for _, v := range devs.GetFields()["device_ids"].GetListValue().GetValues() {
		d := v.GetStringValue()
		m, err := latest(ctx, client, d)
		if err != nil {
			fmt.Printf("Failed to GetLatest for %q: %v\n", d, err)
			continue
		}
		printMessage(m)
	}
}
