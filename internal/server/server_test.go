// Integration tests for the revision service and its remote store client
package server

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/nainya/timegate/internal/logger"
	"github.com/nainya/timegate/internal/metrics"
	"github.com/nainya/timegate/pkg/version"
	"github.com/nainya/timegate/pkg/version/memstore"
	"github.com/nainya/timegate/pkg/version/versiontest"
)

const bufSize = 1024 * 1024

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// remoteBackend writes locally and reads through the revision service
type remoteBackend struct {
	*RemoteStore
	w version.Writer
}

func (b remoteBackend) PutResource(ctx context.Context, res version.Resource) error {
	return b.w.PutResource(ctx, res)
}

func (b remoteBackend) AddVersion(ctx context.Context, res version.Resource, v version.Version) error {
	return b.w.AddVersion(ctx, res, v)
}

func setupTestServer(t *testing.T, catalog version.Catalog) (*grpc.ClientConn, *metrics.Metrics) {
	t.Helper()

	m := metrics.NewMetrics(prometheus.NewRegistry())
	lis := bufconn.Listen(bufSize)

	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(RPCMetricsInterceptor(m, logger.Nop())))
	RegisterRevisionServiceServer(grpcServer, NewServer(catalog))

	go func() {
		// ErrServerStopped is expected during cleanup
		_ = grpcServer.Serve(lis)
	}()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = conn.Close()
		grpcServer.Stop()
		_ = lis.Close()
	})

	return conn, m
}

func TestRemoteStore(t *testing.T) {
	s, err := memstore.New()
	require.NoError(t, err)

	conn, _ := setupTestServer(t, s)
	versiontest.RunCatalogTests(t, remoteBackend{RemoteStore: NewRemoteStore(conn), w: s})
}

func TestLocateRejectsBadRequests(t *testing.T) {
	s, err := memstore.New()
	require.NoError(t, err)
	conn, _ := setupTestServer(t, s)
	ctx := context.Background()

	tests := []struct {
		name   string
		method string
		fields map[string]interface{}
	}{
		{"unknown mode", METHOD_LOCATE, map[string]interface{}{"page_id": "1", "mode": "sideways"}},
		{"missing page", METHOD_LOCATE, map[string]interface{}{"mode": MODE_FIRST}},
		{"numeric page id", METHOD_LOCATE, map[string]interface{}{"page_id": 1.0, "mode": MODE_FIRST}},
		{"bad moment", METHOD_LOCATE, map[string]interface{}{"page_id": "1", "mode": MODE_AFTER, "moment": "yesterday"}},
		{"bad version id", METHOD_LOCATE, map[string]interface{}{"page_id": "1", "mode": MODE_BY_ID, "id": "ten"}},
		{"missing title", METHOD_RESOLVE, map[string]interface{}{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := structpb.NewStruct(tt.fields)
			require.NoError(t, err)
			err = conn.Invoke(ctx, tt.method, in, new(structpb.Struct))
			assert.Equal(t, codes.InvalidArgument, status.Code(err))
		})
	}
}

func TestLargeIDsSurviveTheWire(t *testing.T) {
	s, err := memstore.New()
	require.NoError(t, err)
	conn, _ := setupTestServer(t, s)
	remote := NewRemoteStore(conn)
	ctx := context.Background()

	// 2^53+1 has no exact double representation
	const big = int64(1<<53 + 1)
	res := version.Resource{Title: "Wide", PageID: big}
	require.NoError(t, s.PutResource(ctx, res))
	require.NoError(t, s.AddVersion(ctx, res, version.Version{ID: big + 2, Timestamp: versiontest.T1}))

	got, err := remote.Resolve(ctx, "Wide")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, big, got.PageID)

	v, err := remote.ByID(ctx, *got, big+2)
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, big+2, v.ID)

	versions, err := remote.List(ctx, *got)
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.Equal(t, big+2, versions[0].ID)
}

type failingCatalog struct {
	version.Catalog
}

var errDown = errors.New("replica down")

func (failingCatalog) First(context.Context, version.Resource) (*version.Version, error) {
	return nil, errDown
}

func (failingCatalog) Last(context.Context, version.Resource) (*version.Version, error) {
	return nil, errDown
}

func TestStoreFailureIsUnavailable(t *testing.T) {
	conn, m := setupTestServer(t, failingCatalog{})
	remote := NewRemoteStore(conn)

	_, err := remote.First(context.Background(), versiontest.MainPage)
	assert.Equal(t, codes.Unavailable, status.Code(errors.Unwrap(err)))

	_, err = version.NewLocator(remote).Range(context.Background(), versiontest.MainPage)
	assert.ErrorIs(t, err, version.ErrStoreUnavailable)

	assert.GreaterOrEqual(t, testutil.ToFloat64(m.RPCRequestsTotal.WithLabelValues(METHOD_LOCATE, "error")), 2.0)
}

func TestInterceptorCountsCalls(t *testing.T) {
	s, err := memstore.New()
	require.NoError(t, err)
	versiontest.Seed(t, s)
	conn, m := setupTestServer(t, s)
	remote := NewRemoteStore(conn)
	ctx := context.Background()

	res, err := remote.Resolve(ctx, "Template:Box")
	require.NoError(t, err)
	require.NotNil(t, res)

	versions, err := remote.List(ctx, *res)
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.True(t, versiontest.T2.Equal(versions[0].Timestamp))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RPCRequestsTotal.WithLabelValues(METHOD_RESOLVE, "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RPCRequestsTotal.WithLabelValues(METHOD_LIST, "success")))
}
