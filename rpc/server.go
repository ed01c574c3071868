package rpc

import (
	"context"
	"encoding/json"
	"math"
	"sort"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/envdash/uda/narrative"
	"github.com/envdash/uda/poller"
	"github.com/envdash/uda/quality"
	"github.com/envdash/uda/threshold"
)

// Server implements ClassificationServer. Poller may be nil, in which case
// only Classify and Recommendations return data.
type Server struct {
	Poller *poller.Poller
}

var _ ClassificationServer = (*Server)(nil)

// toStruct converts v to a Struct through its JSON encoding.
func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encoding response: %v", err)
	}

	s := &structpb.Struct{}
	if err := protojson.Unmarshal(b, s); err != nil {
		return nil, status.Errorf(codes.Internal, "encoding response: %v", err)
	}
	return s, nil
}

func domainField(in *structpb.Struct) (threshold.Domain, error) {
	raw := in.GetFields()["domain"].GetStringValue()
	d, ok := threshold.ParseDomain(raw)
	if !ok {
		return "", status.Errorf(codes.NotFound, "unknown domain %q", raw)
	}
	return d, nil
}

func (s *Server) Classify(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	d, err := domainField(in)
	if err != nil {
		return nil, err
	}
	m := threshold.Metric(in.GetFields()["metric"].GetStringValue())

	raw, ok := in.GetFields()["value"]
	if !ok {
		return nil, status.Error(codes.InvalidArgument, "value is required")
	}
	if _, isNum := raw.GetKind().(*structpb.Value_NumberValue); !isNum {
		return nil, status.Error(codes.InvalidArgument, "value must be a number")
	}
	v := raw.GetNumberValue()
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, status.Error(codes.InvalidArgument, "value must be a finite number")
	}

	if _, err := threshold.ClassifyStrict(d, m, &v); err != nil {
		return nil, status.Error(codes.NotFound, err.Error())
	}

	res := quality.Assess(d, m, &v)
	return toStruct(struct {
		*quality.Result
		Summary         string   `json:"summary"`
		Recommendations []string `json:"recommendations"`
	}{res, narrative.Summary(res), narrative.RecommendationsFor(d, res.Label())})
}

func (s *Server) Recommendations(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	d, err := domainField(in)
	if err != nil {
		return nil, err
	}
	label := in.GetFields()["label"].GetStringValue()

	return toStruct(map[string]any{
		"domain":          d,
		"label":           label,
		"recommendations": narrative.RecommendationsFor(d, label),
	})
}

// GetDevices lists the devices with a cached reading, by domain.
func (s *Server) GetDevices(ctx context.Context, in *emptypb.Empty) (*structpb.Struct, error) {
	byDomain := make(map[threshold.Domain][]string)
	all := []string{}

	if s.Poller != nil {
		for _, d := range threshold.Domains() {
			st, ok := s.Poller.Status(d)
			if !ok {
				continue
			}
			for _, u := range st.Devices {
				byDomain[d] = append(byDomain[d], u.Measurement.DeviceID)
				all = append(all, u.Measurement.DeviceID)
			}
		}
	}
	sort.Strings(all)

	return toStruct(map[string]any{
		"device_ids": all,
		"domains":    byDomain,
	})
}

func (s *Server) GetLatest(ctx context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error) {
	if s.Poller == nil {
		return nil, status.Errorf(codes.NotFound, "device ID %q not found", in.GetValue())
	}

	u, ok := s.Poller.Latest(in.GetValue())
	if !ok {
		return nil, status.Errorf(codes.NotFound, "device ID %q not found", in.GetValue())
	}
	return toStruct(u)
}
