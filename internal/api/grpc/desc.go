package grpc

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName полное имя сервиса
const ServiceName = "notes.v1.NotesService"

// NotesServiceServer серверная часть NotesService
type NotesServiceServer interface {
	CreateNote(context.Context, *CreateNoteRequest) (*CreateNoteResponse, error)
	GetNote(context.Context, *GetNoteRequest) (*GetNoteResponse, error)
	ListNotes(context.Context, *ListNotesRequest) (*ListNotesResponse, error)
	UpdateNote(context.Context, *UpdateNoteRequest) (*UpdateNoteResponse, error)
	DeleteNote(context.Context, *DeleteNoteRequest) (*DeleteNoteResponse, error)
	SearchNotes(context.Context, *SearchNotesRequest) (*SearchNotesResponse, error)
	WatchNotes(*WatchNotesRequest, NotesServiceWatchNotesServer) error
}

// NotesServiceWatchNotesServer поток событий для клиента
type NotesServiceWatchNotesServer interface {
	Send(*NoteEvent) error
	grpc.ServerStream
}

// ServiceDesc описание сервиса для grpc.Server.RegisterService
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*NotesServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("CreateNote", NotesServiceServer.CreateNote),
		unary("GetNote", NotesServiceServer.GetNote),
		unary("ListNotes", NotesServiceServer.ListNotes),
		unary("UpdateNote", NotesServiceServer.UpdateNote),
		unary("DeleteNote", NotesServiceServer.DeleteNote),
		unary("SearchNotes", NotesServiceServer.SearchNotes),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "WatchNotes",
			Handler:       watchNotesHandler,
			ServerStreams: true,
		},
	},
	Metadata: "notes/v1/notes",
}

// RegisterNotesServiceServer регистрирует реализацию на сервере
func RegisterNotesServiceServer(s grpc.ServiceRegistrar, srv NotesServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func fullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

func unary[Req, Resp any](method string, call func(NotesServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(NotesServiceServer), ctx, in)
			}

			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(method)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(NotesServiceServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

func watchNotesHandler(srv any, stream grpc.ServerStream) error {
	in := new(WatchNotesRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(NotesServiceServer).WatchNotes(in, &watchNotesServer{stream})
}

type watchNotesServer struct {
	grpc.ServerStream
}

func (s *watchNotesServer) Send(ev *NoteEvent) error {
	return s.ServerStream.SendMsg(ev)
}

// Client клиент NotesService. Соединение должно использовать Codec (см. DialOptions).
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// DialOptions опции соединения, необходимые клиенту
func DialOptions() []grpc.DialOption {
	return []grpc.DialOption{grpc.WithDefaultCallOptions(grpc.ForceCodec(Codec))}
}

func (c *Client) CreateNote(ctx context.Context, in *CreateNoteRequest, opts ...grpc.CallOption) (*CreateNoteResponse, error) {
	out := new(CreateNoteResponse)
	return out, c.cc.Invoke(ctx, fullMethod("CreateNote"), in, out, opts...)
}

func (c *Client) GetNote(ctx context.Context, in *GetNoteRequest, opts ...grpc.CallOption) (*GetNoteResponse, error) {
	out := new(GetNoteResponse)
	return out, c.cc.Invoke(ctx, fullMethod("GetNote"), in, out, opts...)
}

func (c *Client) ListNotes(ctx context.Context, in *ListNotesRequest, opts ...grpc.CallOption) (*ListNotesResponse, error) {
	out := new(ListNotesResponse)
	return out, c.cc.Invoke(ctx, fullMethod("ListNotes"), in, out, opts...)
}

func (c *Client) UpdateNote(ctx context.Context, in *UpdateNoteRequest, opts ...grpc.CallOption) (*UpdateNoteResponse, error) {
	out := new(UpdateNoteResponse)
	return out, c.cc.Invoke(ctx, fullMethod("UpdateNote"), in, out, opts...)
}

func (c *Client) DeleteNote(ctx context.Context, in *DeleteNoteRequest, opts ...grpc.CallOption) (*DeleteNoteResponse, error) {
	out := new(DeleteNoteResponse)
	return out, c.cc.Invoke(ctx, fullMethod("DeleteNote"), in, out, opts...)
}

func (c *Client) SearchNotes(ctx context.Context, in *SearchNotesRequest, opts ...grpc.CallOption) (*SearchNotesResponse, error) {
	out := new(SearchNotesResponse)
	return out, c.cc.Invoke(ctx, fullMethod("SearchNotes"), in, out, opts...)
}

// WatchStream клиентская сторона потока WatchNotes
type WatchStream struct {
	grpc.ClientStream
}

func (s *WatchStream) Recv() (*NoteEvent, error) {
	ev := new(NoteEvent)
	if err := s.ClientStream.RecvMsg(ev); err != nil {
		return nil, err
	}
	return ev, nil
}

func (c *Client) WatchNotes(ctx context.Context, in *WatchNotesRequest, opts ...grpc.CallOption) (*WatchStream, error) {
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], fullMethod("WatchNotes"), opts...)
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &WatchStream{stream}, nil
}
