package worker_test

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"validation-worker/internal/domain"
	httpinfra "validation-worker/internal/infra/http"
	"validation-worker/internal/validation"
	"validation-worker/internal/worker"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

func startIntake(t *testing.T, reg *worker.Registry) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	gs := grpc.NewServer()
	worker.NewServer(reg, discardLogger()).Register(gs)
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("failed to dial bufnet: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func launchRequest(t *testing.T, fields map[string]any) *structpb.Struct {
	t.Helper()
	req, err := structpb.NewStruct(fields)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	return req
}

func TestServer_LaunchesJob(t *testing.T) {
	ns := newNextService(t, http.StatusOK)
	reg := worker.NewRegistry(newVolumeLauncher(discardLogger(), staticValidator(domain.MapResult{"flagged": []any{}})))
	conn := startIntake(t, reg)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ctx = metadata.AppendToOutgoingContext(ctx, domain.IdentityHeader, "aWRlbnRpdHk=")

	req := launchRequest(t, map[string]any{
		"kind":         "volume-type",
		"next_service": ns.URL,
		"job": map[string]any{
			"id":   "b1",
			"data": map[string]any{"volumes": []any{map[string]any{"id": 1, "volume_type": "gp2"}}},
		},
	})
	resp := new(structpb.Struct)
	if err := conn.Invoke(ctx, worker.LaunchMethod, req, resp); err != nil {
		t.Fatalf("Launch() unexpected error: %v", err)
	}
	if resp.GetFields()["execution_id"].GetStringValue() == "" {
		t.Errorf("response = %v, want an execution id", resp)
	}

	deadline := time.Now().Add(5 * time.Second)
	for ns.hits.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("job was never delivered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if ns.body(0)["id"] != "b1" {
		t.Errorf("body = %v", ns.body(0))
	}
	if ns.identity(0) != "aWRlbnRpdHk=" {
		t.Errorf("identity = %q, want the metadata value", ns.identity(0))
	}
}

func TestServer_RejectsBadRequests(t *testing.T) {
	reg := worker.NewRegistry(worker.NewLauncher(
		validation.NewInvoker(validation.VolumeType, staticValidator(domain.MapResult{})),
		httpinfra.NewRetryableSender(discardLogger()),
		discardLogger(),
	))
	conn := startIntake(t, reg)

	tests := []struct {
		name   string
		fields map[string]any
		want   codes.Code
	}{
		{"missing kind", map[string]any{"next_service": "http://next"}, codes.InvalidArgument},
		{"missing next service", map[string]any{"kind": "volume-type"}, codes.InvalidArgument},
		{"unknown kind", map[string]any{"kind": "disk-type", "next_service": "http://next"}, codes.NotFound},
		{"data is not a list of records", map[string]any{
			"kind":         "volume-type",
			"next_service": "http://next",
			"job":          map[string]any{"id": "b1", "data": map[string]any{"volumes": "gp2"}},
		}, codes.InvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			err := conn.Invoke(ctx, worker.LaunchMethod, launchRequest(t, tt.fields), new(structpb.Struct))
			if got := status.Code(err); got != tt.want {
				t.Errorf("code = %s, want %s (err %v)", got, tt.want, err)
			}
		})
	}
}
