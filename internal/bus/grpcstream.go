package bus

import (
	"context"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/anypb"
)

// engineStreamServiceDesc and the interfaces below are the hand-wired
// equivalent of what protoc-gen-go-grpc would emit for a single
// bidirectional-streaming RPC. The wire message is anypb.Any, carrying
// a msgpack-encoded, HMAC-signed envelope as its value — the schema
// the gRPC layer needs to move bytes is fixed, so there is nothing
// service-specific left for codegen to buy us.
const engineStreamServiceName = "ambonmud.bus.EngineStream"

// EngineStreamServer is implemented by the engine side of a gateway<->
// engine stream.
type EngineStreamServer interface {
	Stream(EngineStream_StreamServer) error
}

// EngineStream_StreamServer is the server-side handle for the
// bidirectional stream.
type EngineStream_StreamServer interface {
	Send(*anypb.Any) error
	Recv() (*anypb.Any, error)
	grpc.ServerStream
}

type engineStreamStreamServer struct {
	grpc.ServerStream
}

func (s *engineStreamStreamServer) Send(m *anypb.Any) error {
	return s.ServerStream.SendMsg(m)
}

func (s *engineStreamStreamServer) Recv() (*anypb.Any, error) {
	m := new(anypb.Any)
	if err := s.ServerStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func registerEngineStreamHandler(srv interface{}, stream grpc.ServerStream) error {
	return srv.(EngineStreamServer).Stream(&engineStreamStreamServer{stream})
}

// EngineStreamServiceDesc is registered against a *grpc.Server by the
// engine composition root.
var EngineStreamServiceDesc = grpc.ServiceDesc{
	ServiceName: engineStreamServiceName,
	HandlerType: (*EngineStreamServer)(nil),
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Stream",
			Handler:       registerEngineStreamHandler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
}

// RegisterEngineStreamServer registers the engine-side stream handler.
func RegisterEngineStreamServer(s *grpc.Server, srv EngineStreamServer) {
	s.RegisterService(&EngineStreamServiceDesc, srv)
}

// EngineStream_StreamClient is the gateway-side handle for the stream.
type EngineStream_StreamClient interface {
	Send(*anypb.Any) error
	Recv() (*anypb.Any, error)
	grpc.ClientStream
}

type engineStreamStreamClient struct {
	grpc.ClientStream
}

func (c *engineStreamStreamClient) Send(m *anypb.Any) error {
	return c.ClientStream.SendMsg(m)
}

func (c *engineStreamStreamClient) Recv() (*anypb.Any, error) {
	m := new(anypb.Any)
	if err := c.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

// NewEngineStreamClient opens the bidirectional stream against an
// engine's gRPC endpoint.
func NewEngineStreamClient(ctx context.Context, cc *grpc.ClientConn) (EngineStream_StreamClient, error) {
	desc := &EngineStreamServiceDesc.Streams[0]
	stream, err := cc.NewStream(ctx, desc, "/"+engineStreamServiceName+"/Stream")
	if err != nil {
		return nil, err
	}
	return &engineStreamStreamClient{stream}, nil
}

// Streamed wraps a Local bus with a single gRPC bidirectional stream:
// every event sent locally is also pushed onto the stream; everything
// received off the stream is decoded and enqueued into the local
// delegate. One Streamed bus exists per gateway<->engine pair.
type Streamed[T any] struct {
	*Local[T]

	codec  Codec[T]
	secret []byte
	instanceID string

	send chan T
	done chan struct{}
}

// NewStreamed constructs a Streamed bus. Either side of the pair drives
// it by calling Pump with its own stream handle.
func NewStreamed[T any](capacity int, codec Codec[T], secret, instanceID string) *Streamed[T] {
	return &Streamed[T]{
		Local:      NewLocal[T](capacity),
		codec:      codec,
		secret:     []byte(secret),
		instanceID: instanceID,
		send:       make(chan T, capacity),
		done:       make(chan struct{}),
	}
}

func (s *Streamed[T]) Send(ctx context.Context, event T) error {
	if err := s.Local.Send(ctx, event); err != nil {
		return err
	}
	select {
	case s.send <- event:
	case <-ctx.Done():
	}
	return nil
}

func (s *Streamed[T]) TrySend(event T) bool {
	if !s.Local.TrySend(event) {
		return false
	}
	select {
	case s.send <- event:
	default:
	}
	return true
}

// streamHandle is satisfied by both EngineStream_StreamClient and
// EngineStream_StreamServer.
type streamHandle interface {
	Send(*anypb.Any) error
	Recv() (*anypb.Any, error)
}

// Pump drives the stream: a sender goroutine forwards queued local
// events out, and the calling goroutine reads incoming frames until
// the stream closes or ctx is cancelled.
func (s *Streamed[T]) Pump(ctx context.Context, h streamHandle) error {
	go func() {
		for {
			select {
			case event := <-s.send:
				payload, err := s.codec.Encode(event)
				if err != nil {
					continue
				}
				signed, err := signEnvelope(s.secret, s.instanceID, "event", payload)
				if err != nil {
					continue
				}
				_ = h.Send(&anypb.Any{TypeUrl: "ambonmud.bus/envelope", Value: signed})
			case <-s.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		frame, err := h.Recv()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		env, err := openEnvelope(s.secret, frame.GetValue())
		if err != nil {
			continue
		}
		if env.InstanceID == s.instanceID {
			continue
		}
		event, err := s.codec.Decode(env.Payload)
		if err != nil {
			continue
		}
		s.Local.TrySend(event)
	}
}

// Close stops the pump and releases the local delegate.
func (s *Streamed[T]) Close() {
	close(s.done)
	s.Local.Close()
}
