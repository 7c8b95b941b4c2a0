package grpc

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/sneharawat080/medsimplify/internal/application/simplify"
	"github.com/sneharawat080/medsimplify/internal/infrastructure/monitoring/logging"
	"github.com/sneharawat080/medsimplify/pkg/errors"
	"github.com/sneharawat080/medsimplify/pkg/types/lab"
)

const (
	SimplifierServiceName    = "medsimplify.v1.Simplifier"
	SimplifyTextFullMethod   = "/" + SimplifierServiceName + "/SimplifyText"
	LookupTestFullMethod     = "/" + SimplifierServiceName + "/LookupTest"
	simplifierServiceFileTag = "medsimplify/v1/simplifier.proto"
)

// SimplifierServer is the server API of medsimplify.v1.Simplifier.
type SimplifierServer interface {
	// SimplifyText takes the raw report text and returns the JSON response
	// body of POST /api/simplify-text as a Struct.
	SimplifyText(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	// LookupTest resolves a test name or synonym to its knowledge base entry.
	LookupTest(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
}

// SimplifierServiceDesc describes medsimplify.v1.Simplifier for
// grpc.Server.RegisterService.
var SimplifierServiceDesc = grpc.ServiceDesc{
	ServiceName: SimplifierServiceName,
	HandlerType: (*SimplifierServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "SimplifyText", Handler: simplifyTextHandler},
		{MethodName: "LookupTest", Handler: lookupTestHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: simplifierServiceFileTag,
}

func simplifyTextHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SimplifierServer).SimplifyText(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: SimplifyTextFullMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SimplifierServer).SimplifyText(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func lookupTestHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SimplifierServer).LookupTest(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: LookupTestFullMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SimplifierServer).LookupTest(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

// SimplifierService adapts simplify.Service to SimplifierServer.
type SimplifierService struct {
	service simplify.Service
	logger  logging.Logger
}

func NewSimplifierService(service simplify.Service, logger logging.Logger) *SimplifierService {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &SimplifierService{service: service, logger: logger}
}

func (s *SimplifierService) SimplifyText(ctx context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error) {
	resp, err := s.service.SimplifyFrom(ctx, simplify.SourceGRPC, in.GetValue())
	if err != nil {
		return nil, ToStatus(err)
	}
	out, err := toStruct(resp)
	if err != nil {
		s.logger.WithContext(ctx).Error("encode grpc response", logging.Err(err))
		return nil, ToStatus(err)
	}
	return out, nil
}

func (s *SimplifierService) LookupTest(ctx context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error) {
	dto, err := s.service.LookupTest(ctx, in.GetValue())
	if err != nil {
		return nil, ToStatus(err)
	}
	out, err := toStruct(dto)
	if err != nil {
		return nil, ToStatus(err)
	}
	return out, nil
}

// toStruct converts v through its JSON form so the Struct has the same field
// names as the HTTP API.
func toStruct(v interface{}) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "marshal response")
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "unmarshal response")
	}
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "build struct")
	}
	return s, nil
}

// fromStruct decodes s into out through JSON.
func fromStruct(s *structpb.Struct, out interface{}) error {
	raw, err := json.Marshal(s.AsMap())
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "marshal struct")
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "decode struct")
	}
	return nil
}

// SimplifierClient calls medsimplify.v1.Simplifier and decodes the Struct
// responses into the HTTP API types.
type SimplifierClient struct {
	cc grpc.ClientConnInterface
}

func NewSimplifierClient(cc grpc.ClientConnInterface) *SimplifierClient {
	return &SimplifierClient{cc: cc}
}

// SimplifyText returns the decoded response. Failures are *errors.AppError.
func (c *SimplifierClient) SimplifyText(ctx context.Context, text string, opts ...grpc.CallOption) (*lab.SimplifyResponse, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, SimplifyTextFullMethod, wrapperspb.String(text), out, opts...); err != nil {
		return nil, FromStatus(err)
	}
	var resp lab.SimplifyResponse
	if err := fromStruct(out, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// LookupTest returns the entry for name. Failures are *errors.AppError.
func (c *SimplifierClient) LookupTest(ctx context.Context, name string, opts ...grpc.CallOption) (*lab.KBTestDTO, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, LookupTestFullMethod, wrapperspb.String(name), out, opts...); err != nil {
		return nil, FromStatus(err)
	}
	var dto lab.KBTestDTO
	if err := fromStruct(out, &dto); err != nil {
		return nil, err
	}
	return &dto, nil
}
