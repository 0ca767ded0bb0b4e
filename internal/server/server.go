// Package server implements the gRPC revision service and the HTTP Memento surface
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/nainya/timegate/internal/logger"
	"github.com/nainya/timegate/internal/metrics"
	"github.com/nainya/timegate/pkg/timestamp"
	"github.com/nainya/timegate/pkg/version"
)

// RevisionService method names
const (
	SERVICE_NAME   = "timegate.v1.RevisionService"
	METHOD_LOCATE  = "/" + SERVICE_NAME + "/Locate"
	METHOD_LIST    = "/" + SERVICE_NAME + "/List"
	METHOD_RESOLVE = "/" + SERVICE_NAME + "/Resolve"
	PROTO_FILE     = "timegate/v1/revision.proto"
)

// Locate modes
const (
	MODE_FIRST        = "first"
	MODE_LAST         = "last"
	MODE_AT_OR_BEFORE = "at_or_before"
	MODE_AFTER        = "after"
	MODE_BEFORE       = "before"
	MODE_BY_ID        = "by_id"
)

// RevisionServiceServer answers version lookups for remote TimeGates.
// Messages are google.protobuf.Struct:
//
//	Locate  {page_id, title, mode, moment?, id?} -> {found, id?, timestamp?}
//	List    {page_id, title}                     -> {versions: [{id, timestamp}]}
//	Resolve {title}                              -> {found, page_id?, title?, categories?}
//
// Timestamps travel in the compact storage form. Page and version ids
// travel as decimal strings; Struct numbers are doubles and would lose
// precision above 2^53.
type RevisionServiceServer interface {
	Locate(context.Context, *structpb.Struct) (*structpb.Struct, error)
	List(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Resolve(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RegisterRevisionServiceServer registers srv with s
func RegisterRevisionServiceServer(s grpc.ServiceRegistrar, srv RevisionServiceServer) {
	s.RegisterService(&revisionServiceDesc, srv)
}

var revisionServiceDesc = grpc.ServiceDesc{
	ServiceName: SERVICE_NAME,
	HandlerType: (*RevisionServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Locate", Handler: unaryHandler(METHOD_LOCATE, RevisionServiceServer.Locate)},
		{MethodName: "List", Handler: unaryHandler(METHOD_LIST, RevisionServiceServer.List)},
		{MethodName: "Resolve", Handler: unaryHandler(METHOD_RESOLVE, RevisionServiceServer.Resolve)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: PROTO_FILE,
}

type unaryMethod func(RevisionServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call unaryMethod) grpc.MethodHandler {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(RevisionServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(RevisionServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// Server implements RevisionServiceServer over a version catalog
type Server struct {
	catalog version.Catalog
}

// NewServer creates a revision service over catalog
func NewServer(catalog version.Catalog) *Server {
	return &Server{catalog: catalog}
}

// Locate runs one temporal lookup
func (s *Server) Locate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	res, err := resourceFromStruct(req)
	if err != nil {
		return nil, err
	}

	fields := req.GetFields()
	mode := fields["mode"].GetStringValue()

	var v *version.Version
	switch mode {
	case MODE_FIRST:
		v, err = s.catalog.First(ctx, res)
	case MODE_LAST:
		v, err = s.catalog.Last(ctx, res)
	case MODE_BY_ID:
		id, perr := parseID(fields["id"])
		if perr != nil {
			return nil, status.Errorf(codes.InvalidArgument, "id: %v", perr)
		}
		v, err = s.catalog.ByID(ctx, res, id)
	case MODE_AT_OR_BEFORE, MODE_AFTER, MODE_BEFORE:
		moment, perr := timestamp.FromStorage(fields["moment"].GetStringValue())
		if perr != nil {
			return nil, status.Errorf(codes.InvalidArgument, "moment: %v", perr)
		}
		switch mode {
		case MODE_AT_OR_BEFORE:
			v, err = s.catalog.AtOrBefore(ctx, res, moment)
		case MODE_AFTER:
			v, err = s.catalog.After(ctx, res, moment)
		default:
			v, err = s.catalog.Before(ctx, res, moment)
		}
	default:
		return nil, status.Errorf(codes.InvalidArgument, "unknown mode %q", mode)
	}
	if err != nil {
		return nil, storeStatus(err)
	}

	out := map[string]interface{}{"found": v != nil}
	if v != nil {
		out["id"] = formatID(v.ID)
		out["timestamp"] = timestamp.ToStorage(v.Timestamp)
	}
	return structpb.NewStruct(out)
}

// List returns the ascending history of a resource
func (s *Server) List(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	res, err := resourceFromStruct(req)
	if err != nil {
		return nil, err
	}

	versions, err := s.catalog.List(ctx, res)
	if err != nil {
		return nil, storeStatus(err)
	}

	items := make([]interface{}, len(versions))
	for i, v := range versions {
		items[i] = map[string]interface{}{
			"id":        formatID(v.ID),
			"timestamp": timestamp.ToStorage(v.Timestamp),
		}
	}
	return structpb.NewStruct(map[string]interface{}{"versions": items})
}

// Resolve maps a title onto a resource
func (s *Server) Resolve(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	title := req.GetFields()["title"].GetStringValue()
	if title == "" {
		return nil, status.Error(codes.InvalidArgument, "title is required")
	}

	res, err := s.catalog.Resolve(ctx, title)
	if err != nil {
		return nil, storeStatus(err)
	}
	if res == nil {
		return structpb.NewStruct(map[string]interface{}{"found": false})
	}

	categories := make([]interface{}, len(res.Categories))
	for i, c := range res.Categories {
		categories[i] = c
	}
	return structpb.NewStruct(map[string]interface{}{
		"found":      true,
		"page_id":    formatID(res.PageID),
		"title":      res.Title,
		"categories": categories,
	})
}

func resourceFromStruct(req *structpb.Struct) (version.Resource, error) {
	fields := req.GetFields()
	if fields["page_id"] == nil {
		return version.Resource{}, status.Error(codes.InvalidArgument, "page_id is required")
	}
	pageID, err := parseID(fields["page_id"])
	if err != nil {
		return version.Resource{}, status.Errorf(codes.InvalidArgument, "page_id: %v", err)
	}
	return version.Resource{
		PageID: pageID,
		Title:  fields["title"].GetStringValue(),
	}, nil
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func parseID(v *structpb.Value) (int64, error) {
	id, err := strconv.ParseInt(v.GetStringValue(), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("want a decimal string, got %v", v.AsInterface())
	}
	return id, nil
}

func storeStatus(err error) error {
	if errors.Is(err, context.Canceled) {
		return status.Error(codes.Canceled, err.Error())
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	return status.Errorf(codes.Unavailable, "version store: %v", err)
}

// RPCServer serves the revision service over gRPC
type RPCServer struct {
	port   int
	server *grpc.Server
	log    *logger.Logger
}

// NewRPCServer creates a gRPC server for catalog with metrics and logging
func NewRPCServer(port int, catalog version.Catalog, m *metrics.Metrics, log *logger.Logger) *RPCServer {
	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(RPCMetricsInterceptor(m, log)))
	RegisterRevisionServiceServer(grpcServer, NewServer(catalog))

	return &RPCServer{port: port, server: grpcServer, log: log}
}

// Start listens and serves until Shutdown is called
func (s *RPCServer) Start() error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", s.port, err)
	}

	s.log.Info("Starting revision service").Int("port", s.port).Send()
	if err := s.server.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("revision service failed: %w", err)
	}
	return nil
}

// Shutdown stops accepting calls and waits for in-flight ones
func (s *RPCServer) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down revision service").Send()

	done := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.server.Stop()
		return ctx.Err()
	}
}
