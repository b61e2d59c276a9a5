package grpc

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/flowmesh/dexterity/internal/fti"
	"github.com/flowmesh/dexterity/internal/security"
	"github.com/flowmesh/dexterity/internal/site"
	"github.com/flowmesh/dexterity/internal/tracing"
)

// TypesServiceName is the full name of the types service
const TypesServiceName = "dexterity.v1.TypesService"

// permissionView guards content reads
const permissionView = "zope2.View"

// TypesServer is the server API of the types service. Requests and
// responses are well-known protobuf types so no generated code is needed.
type TypesServer interface {
	// ListTypes returns {"types": [...]} with the properties of every type
	ListTypes(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	// GetType returns the properties of one type
	GetType(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	// GetContent returns the readable state of the object at a path
	GetContent(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	// ProvidedBy returns the interface names the object at a path provides
	ProvidedBy(context.Context, *wrapperspb.StringValue) (*structpb.ListValue, error)
}

// TypesServiceDesc describes the types service for registration
var TypesServiceDesc = grpc.ServiceDesc{
	ServiceName: TypesServiceName,
	HandlerType: (*TypesServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("ListTypes", func() *emptypb.Empty { return &emptypb.Empty{} }, TypesServer.ListTypes),
		unary("GetType", func() *wrapperspb.StringValue { return &wrapperspb.StringValue{} }, TypesServer.GetType),
		unary("GetContent", func() *wrapperspb.StringValue { return &wrapperspb.StringValue{} }, TypesServer.GetContent),
		unary("ProvidedBy", func() *wrapperspb.StringValue { return &wrapperspb.StringValue{} }, TypesServer.ProvidedBy),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "dexterity/v1/types.proto",
}

// RegisterTypesServer registers srv with s
func RegisterTypesServer(s grpc.ServiceRegistrar, srv TypesServer) {
	s.RegisterService(&TypesServiceDesc, srv)
}

func unary[Req, Resp proto.Message](name string, newReq func() Req, call func(TypesServer, context.Context, Req) (Resp, error)) grpc.MethodDesc {
	fullMethod := "/" + TypesServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := newReq()
			if err := dec(in); err != nil {
				return nil, err
			}
			ts := srv.(TypesServer)
			if interceptor == nil {
				return call(ts, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(ts, ctx, req.(Req))
			})
		},
	}
}

// TypesClient calls the types service
type TypesClient struct {
	cc grpc.ClientConnInterface
}

// outgoing carries the trace context of ctx in the call metadata
func outgoing(ctx context.Context) context.Context {
	headers := make(map[string]string)
	tracing.InjectToHeaders(ctx, headers)
	for k, v := range headers {
		ctx = metadata.AppendToOutgoingContext(ctx, k, v)
	}
	return ctx
}

// NewTypesClient creates a client over cc
func NewTypesClient(cc grpc.ClientConnInterface) *TypesClient {
	return &TypesClient{cc: cc}
}

// ListTypes calls TypesService/ListTypes
func (c *TypesClient) ListTypes(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(outgoing(ctx), "/"+TypesServiceName+"/ListTypes", &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// GetType calls TypesService/GetType
func (c *TypesClient) GetType(ctx context.Context, id string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(outgoing(ctx), "/"+TypesServiceName+"/GetType", wrapperspb.String(id), out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// GetContent calls TypesService/GetContent
func (c *TypesClient) GetContent(ctx context.Context, path string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(outgoing(ctx), "/"+TypesServiceName+"/GetContent", wrapperspb.String(path), out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// ProvidedBy calls TypesService/ProvidedBy
func (c *TypesClient) ProvidedBy(ctx context.Context, path string, opts ...grpc.CallOption) (*structpb.ListValue, error) {
	out := new(structpb.ListValue)
	if err := c.cc.Invoke(outgoing(ctx), "/"+TypesServiceName+"/ProvidedBy", wrapperspb.String(path), out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// TypesService implements TypesServer over a site
type TypesService struct {
	site *site.Site
}

// NewTypesService creates a new types service
func NewTypesService(s *site.Site) *TypesService {
	return &TypesService{site: s}
}

// ListTypes returns every type of the site
func (s *TypesService) ListTypes(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	types := []any{}
	for _, d := range s.site.Tool().List() {
		types = append(types, typeDocument(d))
	}
	return toStruct(map[string]any{"types": types})
}

// GetType returns one type
func (s *TypesService) GetType(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	d, ok := s.site.Tool().Get(req.GetValue())
	if !ok {
		return nil, fti.NotFoundError{TypeID: req.GetValue()}
	}
	return toStruct(typeDocument(d))
}

// GetContent returns the readable state of an object
func (s *TypesService) GetContent(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	obj, err := s.site.Traverse(req.GetValue())
	if err != nil {
		return nil, err
	}
	env := s.site.Environment()
	if !security.Check(ctx, env.Checker, env.Permissions, permissionView, obj) {
		return nil, security.ForbiddenError{Permission: permissionView, Target: obj.PhysicalPath()}
	}
	return toStruct(map[string]any{
		"uid":            obj.UID(),
		"id":             obj.ID(),
		"path":           obj.PhysicalPath(),
		"portal_type":    obj.PortalType(),
		"workflow_state": obj.WorkflowState(),
		"modified":       obj.ModificationTime(),
		"fields":         s.site.Readable(ctx, obj),
		"children":       obj.ChildIDs(),
	})
}

// ProvidedBy returns the names of the interfaces an object provides
func (s *TypesService) ProvidedBy(ctx context.Context, req *wrapperspb.StringValue) (*structpb.ListValue, error) {
	obj, err := s.site.Traverse(req.GetValue())
	if err != nil {
		return nil, err
	}
	names := s.site.Resolver().ProvidedBy(obj).Names()
	values := make([]any, len(names))
	for i, n := range names {
		values[i] = n
	}
	return structpb.NewList(values)
}

func typeDocument(d *fti.Descriptor) map[string]any {
	return map[string]any{
		"properties":  d.Properties(),
		"schema_name": d.SchemaName(),
		"dynamic":     d.HasDynamicSchema(),
	}
}

// toStruct converts v through its JSON form, so field values of any
// JSON-marshalable type are accepted
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode response: %w", err)
	}
	out := &structpb.Struct{}
	if err := out.UnmarshalJSON(data); err != nil {
		return nil, fmt.Errorf("failed to encode response: %w", err)
	}
	return out, nil
}
