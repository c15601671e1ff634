// internal/worker/server.go
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"validation-worker/internal/domain"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// IntakeServiceName is the fully qualified gRPC service name.
const IntakeServiceName = "validation.v1.JobIntake"

// LaunchMethod is the full method name of the unary launch call.
const LaunchMethod = "/" + IntakeServiceName + "/Launch"

// IntakeServer accepts jobs over gRPC. Messages are google.protobuf.Struct:
// the request carries kind, next_service, identity and job; the response
// carries execution_id, kind and state.
type IntakeServer interface {
	Launch(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

var intakeServiceDesc = grpc.ServiceDesc{
	ServiceName: IntakeServiceName,
	HandlerType: (*IntakeServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Launch", Handler: launchHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "validation/v1/intake",
}

func launchHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(IntakeServer).Launch(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: LaunchMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(IntakeServer).Launch(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// Server implements IntakeServer on top of a launcher registry.
type Server struct {
	registry *Registry
	logger   *slog.Logger
	tracer   trace.Tracer
}

// NewServer creates a new gRPC intake server for the worker.
func NewServer(registry *Registry, logger *slog.Logger) *Server {
	return &Server{
		registry: registry,
		logger:   logger.With("component", "grpc-server"),
		tracer:   otel.Tracer("validation-worker-intake"),
	}
}

// Register attaches the intake service to gs.
func (s *Server) Register(gs *grpc.Server) {
	gs.RegisterService(&intakeServiceDesc, s)
}

// Launch decodes the job and hands it to the registry. The job itself is
// not checked here; the response only tells that it was started.
func (s *Server) Launch(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ctx, span := s.tracer.Start(ctx, "worker.Launch.Accept")
	defer span.End()

	fields := req.GetFields()
	kind := fields["kind"].GetStringValue()
	nextService := fields["next_service"].GetStringValue()
	span.SetAttributes(attribute.String("job.kind", kind))

	if kind == "" || nextService == "" {
		span.SetStatus(otelcodes.Error, "invalid launch request")
		return nil, status.Error(codes.InvalidArgument, "kind and next_service are required")
	}

	identity := fields["identity"].GetStringValue()
	if identity == "" {
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if vals := md.Get(domain.IdentityHeader); len(vals) > 0 {
				identity = vals[0]
			}
		}
	}

	job, err := structToJob(fields["job"].GetStructValue())
	if err != nil {
		s.logger.Error("failed to convert launch request to domain job", "kind", kind, "error", err)
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, "invalid job")
		return nil, status.Errorf(codes.InvalidArgument, "invalid job: %v", err)
	}

	h, err := s.registry.Launch(ctx, kind, job, nextService, identity)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, "launch rejected")
		if errors.Is(err, ErrUnknownKind) {
			return nil, status.Error(codes.NotFound, err.Error())
		}
		return nil, status.Error(codes.Internal, err.Error())
	}

	s.logger.Info("received job launch request", "kind", kind, "execution_id", h.ID())
	span.SetAttributes(attribute.String("execution.id", h.ID()))

	return structpb.NewStruct(map[string]any{
		"execution_id": h.ID(),
		"kind":         h.Kind(),
		"state":        string(h.State()),
	})
}

// structToJob converts a protobuf Struct to a domain.Job. A nil struct
// yields an empty job, which the worker aborts as malformed.
func structToJob(st *structpb.Struct) (*domain.Job, error) {
	job := &domain.Job{}
	if st == nil {
		return job, nil
	}
	raw, err := json.Marshal(st.AsMap())
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, job); err != nil {
		return nil, err
	}
	return job, nil
}
