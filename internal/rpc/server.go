package rpc

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/negotiation-coach/internal/coach"
	"github.com/danielpatrickdp/negotiation-coach/internal/engine"
	"github.com/danielpatrickdp/negotiation-coach/internal/sessionstore"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "negotiation.v1.CoachService"

// #region service-desc

// CoachServer is the server side of negotiation.v1.CoachService.
type CoachServer interface {
	StartSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ProcessTurn(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GenerateReply(context.Context, *structpb.Struct) (*structpb.Struct, error)
	EndSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Assess(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryMethod func(CoachServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CoachServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "StartSession", Handler: handler("StartSession", CoachServer.StartSession)},
		{MethodName: "ProcessTurn", Handler: handler("ProcessTurn", CoachServer.ProcessTurn)},
		{MethodName: "GenerateReply", Handler: handler("GenerateReply", CoachServer.GenerateReply)},
		{MethodName: "EndSession", Handler: handler("EndSession", CoachServer.EndSession)},
		{MethodName: "Assess", Handler: handler("Assess", CoachServer.Assess)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "negotiation/v1/coach.proto",
}

func handler(method string, call unaryMethod) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(CoachServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + method}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return call(srv.(CoachServer), ctx, req.(*structpb.Struct))
		})
	}
}

// #endregion service-desc

// #region server

// Server adapts a coach.Service to CoachServer.
type Server struct {
	svc *coach.Service
}

// NewServer creates a Server.
func NewServer(svc *coach.Service) *Server {
	return &Server{svc: svc}
}

// Register attaches the service to gs.
func (s *Server) Register(gs *grpc.Server) {
	gs.RegisterService(&serviceDesc, s)
}

// NewGRPCServer builds a grpc.Server with request logging and the coach
// service registered.
func NewGRPCServer(svc *coach.Service, log *zap.Logger) *grpc.Server {
	gs := grpc.NewServer(grpc.UnaryInterceptor(LoggingInterceptor(log)))
	NewServer(svc).Register(gs)
	return gs
}

// StartSession handles {session_id} and returns {session_id}.
func (s *Server) StartSession(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req sessionRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	id, err := s.svc.StartSession(ctx, req.SessionID)
	if err != nil {
		return nil, toStatus(err)
	}
	return encode(sessionResponse{SessionID: id})
}

// ProcessTurn handles {session_id, turn} and returns the annotation.
func (s *Server) ProcessTurn(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req processRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	ann, err := s.svc.ProcessTurn(ctx, req.SessionID, req.Turn)
	if err != nil {
		return nil, toStatus(err)
	}
	return encode(ann)
}

// GenerateReply handles {session_id, profile, instructions}.
func (s *Server) GenerateReply(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req replyRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	reply, err := s.svc.GenerateReply(ctx, req.SessionID, coach.ReplyRequest{
		Profile:      req.Profile,
		Instructions: req.Instructions,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return encode(reply)
}

// EndSession handles {session_id} and returns the final report.
func (s *Server) EndSession(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req sessionRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	report, err := s.svc.EndSession(ctx, req.SessionID)
	if err != nil {
		return nil, toStatus(err)
	}
	return encode(report)
}

// Assess handles {turns} and returns a report without creating a session.
func (s *Server) Assess(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req assessRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	return encode(s.svc.Assess(ctx, req.Turns))
}

// #endregion server

// #region helpers

func encode(v any) (*structpb.Struct, error) {
	out, err := toStruct(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, engine.ErrSessionNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, sessionstore.ErrLocked):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}

// LoggingInterceptor logs every unary call with its method, code and latency.
func LoggingInterceptor(log *zap.Logger) grpc.UnaryServerInterceptor {
	if log == nil {
		log = zap.NewNop()
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := next(ctx, req)
		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.String("code", status.Code(err).String()),
			zap.Duration("latency", time.Since(start)),
		}
		if err != nil {
			log.Warn("rpc failed", append(fields, zap.Error(err))...)
		} else {
			log.Debug("rpc", fields...)
		}
		return resp, err
	}
}

// #endregion helpers
