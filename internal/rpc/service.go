package rpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "lifedash.EntryService"

const (
	MethodPing            = "/" + ServiceName + "/Ping"
	MethodList            = "/" + ServiceName + "/List"
	MethodCreate          = "/" + ServiceName + "/Create"
	MethodUpdate          = "/" + ServiceName + "/Update"
	MethodDelete          = "/" + ServiceName + "/Delete"
	MethodPresignUpload   = "/" + ServiceName + "/PresignUpload"
	MethodPresignDownload = "/" + ServiceName + "/PresignDownload"
)

// EntryServiceServer is implemented by the record service.
type EntryServiceServer interface {
	Ping(context.Context, *PingRequest) (*PingResponse, error)
	List(context.Context, *ListRequest) (*ListResponse, error)
	Create(context.Context, *CreateRequest) (*EntryResponse, error)
	Update(context.Context, *UpdateRequest) (*EntryResponse, error)
	Delete(context.Context, *DeleteRequest) (*DeleteResponse, error)
	PresignUpload(context.Context, *PresignUploadRequest) (*PresignResponse, error)
	PresignDownload(context.Context, *PresignDownloadRequest) (*PresignResponse, error)
}

// EntryServiceClient is the client API for EntryService.
type EntryServiceClient interface {
	Ping(ctx context.Context, in *PingRequest, opts ...grpc.CallOption) (*PingResponse, error)
	List(ctx context.Context, in *ListRequest, opts ...grpc.CallOption) (*ListResponse, error)
	Create(ctx context.Context, in *CreateRequest, opts ...grpc.CallOption) (*EntryResponse, error)
	Update(ctx context.Context, in *UpdateRequest, opts ...grpc.CallOption) (*EntryResponse, error)
	Delete(ctx context.Context, in *DeleteRequest, opts ...grpc.CallOption) (*DeleteResponse, error)
	PresignUpload(ctx context.Context, in *PresignUploadRequest, opts ...grpc.CallOption) (*PresignResponse, error)
	PresignDownload(ctx context.Context, in *PresignDownloadRequest, opts ...grpc.CallOption) (*PresignResponse, error)
}

// RegisterEntryServiceServer registers srv on s.
func RegisterEntryServiceServer(s grpc.ServiceRegistrar, srv EntryServiceServer) {
	s.RegisterService(&EntryServiceDesc, srv)
}

// EntryServiceDesc describes EntryService for grpc.Server.
var EntryServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*EntryServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Ping", MethodPing, EntryServiceServer.Ping),
		unary("List", MethodList, EntryServiceServer.List),
		unary("Create", MethodCreate, EntryServiceServer.Create),
		unary("Update", MethodUpdate, EntryServiceServer.Update),
		unary("Delete", MethodDelete, EntryServiceServer.Delete),
		unary("PresignUpload", MethodPresignUpload, EntryServiceServer.PresignUpload),
		unary("PresignDownload", MethodPresignDownload, EntryServiceServer.PresignDownload),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "lifedash/entry_service",
}

// message is implemented by every request and response type.
type message[T any] interface {
	*T
	toProto() (*structpb.Struct, error)
	fromProto(*structpb.Struct) error
}

func unary[Req, Resp any, PReq message[Req], PResp message[Resp]](name, fullMethod string, call func(EntryServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			wire := new(structpb.Struct)
			if err := dec(wire); err != nil {
				return nil, err
			}
			in := new(Req)
			if err := PReq(in).fromProto(wire); err != nil {
				return nil, status.Errorf(codes.InvalidArgument, "decode %s: %v", name, err)
			}

			var out any
			var err error
			if interceptor == nil {
				out, err = call(srv.(EntryServiceServer), ctx, in)
			} else {
				info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
				handler := func(ctx context.Context, req any) (any, error) {
					return call(srv.(EntryServiceServer), ctx, req.(*Req))
				}
				out, err = interceptor(ctx, in, info, handler)
			}
			if err != nil {
				return nil, err
			}

			resp, ok := out.(*Resp)
			if !ok || resp == nil {
				return nil, status.Errorf(codes.Internal, "%s returned no response", name)
			}
			encoded, err := PResp(resp).toProto()
			if err != nil {
				return nil, status.Errorf(codes.Internal, "encode %s: %v", name, err)
			}
			return encoded, nil
		},
	}
}

type entryServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewEntryServiceClient(cc grpc.ClientConnInterface) EntryServiceClient {
	return &entryServiceClient{cc: cc}
}

func invoke[Req, Resp any, PReq message[Req], PResp message[Resp]](ctx context.Context, cc grpc.ClientConnInterface, method string, in *Req, opts []grpc.CallOption) (*Resp, error) {
	wire, err := PReq(in).toProto()
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", method, err)
	}
	reply := new(structpb.Struct)
	if err := cc.Invoke(ctx, method, wire, reply, opts...); err != nil {
		return nil, err
	}
	out := new(Resp)
	if err := PResp(out).fromProto(reply); err != nil {
		return nil, fmt.Errorf("decode %s: %w", method, err)
	}
	return out, nil
}

func (c *entryServiceClient) Ping(ctx context.Context, in *PingRequest, opts ...grpc.CallOption) (*PingResponse, error) {
	return invoke[PingRequest, PingResponse](ctx, c.cc, MethodPing, in, opts)
}

func (c *entryServiceClient) List(ctx context.Context, in *ListRequest, opts ...grpc.CallOption) (*ListResponse, error) {
	return invoke[ListRequest, ListResponse](ctx, c.cc, MethodList, in, opts)
}

func (c *entryServiceClient) Create(ctx context.Context, in *CreateRequest, opts ...grpc.CallOption) (*EntryResponse, error) {
	return invoke[CreateRequest, EntryResponse](ctx, c.cc, MethodCreate, in, opts)
}

func (c *entryServiceClient) Update(ctx context.Context, in *UpdateRequest, opts ...grpc.CallOption) (*EntryResponse, error) {
	return invoke[UpdateRequest, EntryResponse](ctx, c.cc, MethodUpdate, in, opts)
}

func (c *entryServiceClient) Delete(ctx context.Context, in *DeleteRequest, opts ...grpc.CallOption) (*DeleteResponse, error) {
	return invoke[DeleteRequest, DeleteResponse](ctx, c.cc, MethodDelete, in, opts)
}

func (c *entryServiceClient) PresignUpload(ctx context.Context, in *PresignUploadRequest, opts ...grpc.CallOption) (*PresignResponse, error) {
	return invoke[PresignUploadRequest, PresignResponse](ctx, c.cc, MethodPresignUpload, in, opts)
}

func (c *entryServiceClient) PresignDownload(ctx context.Context, in *PresignDownloadRequest, opts ...grpc.CallOption) (*PresignResponse, error) {
	return invoke[PresignDownloadRequest, PresignResponse](ctx, c.cc, MethodPresignDownload, in, opts)
}

// UnimplementedEntryServiceServer can be embedded by servers and test fakes
// that only implement part of the service.
type UnimplementedEntryServiceServer struct{}

func (UnimplementedEntryServiceServer) Ping(context.Context, *PingRequest) (*PingResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Ping not implemented")
}

func (UnimplementedEntryServiceServer) List(context.Context, *ListRequest) (*ListResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method List not implemented")
}

func (UnimplementedEntryServiceServer) Create(context.Context, *CreateRequest) (*EntryResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Create not implemented")
}

func (UnimplementedEntryServiceServer) Update(context.Context, *UpdateRequest) (*EntryResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Update not implemented")
}

func (UnimplementedEntryServiceServer) Delete(context.Context, *DeleteRequest) (*DeleteResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Delete not implemented")
}

func (UnimplementedEntryServiceServer) PresignUpload(context.Context, *PresignUploadRequest) (*PresignResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method PresignUpload not implemented")
}

func (UnimplementedEntryServiceServer) PresignDownload(context.Context, *PresignDownloadRequest) (*PresignResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method PresignDownload not implemented")
}
