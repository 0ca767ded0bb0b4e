package server

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/nainya/timegate/pkg/timestamp"
	"github.com/nainya/timegate/pkg/version"
)

// RemoteStore is a version.Catalog served by a remote RevisionService
type RemoteStore struct {
	conn grpc.ClientConnInterface
}

// NewRemoteStore wraps an established connection
func NewRemoteStore(conn grpc.ClientConnInterface) *RemoteStore {
	return &RemoteStore{conn: conn}
}

// DialRemoteStore connects to a revision service at addr. The caller closes
// the returned connection.
func DialRemoteStore(addr string) (*RemoteStore, *grpc.ClientConn, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, nil, fmt.Errorf("dial revision service %s: %w", addr, err)
	}
	return NewRemoteStore(conn), conn, nil
}

// First returns the earliest version of res
func (r *RemoteStore) First(ctx context.Context, res version.Resource) (*version.Version, error) {
	return r.locate(ctx, res, MODE_FIRST, nil)
}

// Last returns the latest version of res
func (r *RemoteStore) Last(ctx context.Context, res version.Resource) (*version.Version, error) {
	return r.locate(ctx, res, MODE_LAST, nil)
}

// AtOrBefore returns the version current at moment
func (r *RemoteStore) AtOrBefore(ctx context.Context, res version.Resource, moment time.Time) (*version.Version, error) {
	return r.locate(ctx, res, MODE_AT_OR_BEFORE, map[string]interface{}{"moment": timestamp.ToStorage(moment)})
}

// After returns the first version strictly after moment
func (r *RemoteStore) After(ctx context.Context, res version.Resource, moment time.Time) (*version.Version, error) {
	return r.locate(ctx, res, MODE_AFTER, map[string]interface{}{"moment": timestamp.ToStorage(moment)})
}

// Before returns the last version strictly before moment
func (r *RemoteStore) Before(ctx context.Context, res version.Resource, moment time.Time) (*version.Version, error) {
	return r.locate(ctx, res, MODE_BEFORE, map[string]interface{}{"moment": timestamp.ToStorage(moment)})
}

// ByID returns version id of res
func (r *RemoteStore) ByID(ctx context.Context, res version.Resource, id int64) (*version.Version, error) {
	return r.locate(ctx, res, MODE_BY_ID, map[string]interface{}{"id": formatID(id)})
}

// Resolve maps a title onto a resource
func (r *RemoteStore) Resolve(ctx context.Context, title string) (*version.Resource, error) {
	in, err := structpb.NewStruct(map[string]interface{}{"title": title})
	if err != nil {
		return nil, fmt.Errorf("encode resolve request: %w", err)
	}

	out := new(structpb.Struct)
	if err := r.conn.Invoke(ctx, METHOD_RESOLVE, in, out); err != nil {
		return nil, fmt.Errorf("resolve %q: %w", title, err)
	}

	fields := out.GetFields()
	if !fields["found"].GetBoolValue() {
		return nil, nil
	}

	pageID, err := parseID(fields["page_id"])
	if err != nil {
		return nil, fmt.Errorf("decode resource: %w", err)
	}

	var categories []string
	for _, c := range fields["categories"].GetListValue().GetValues() {
		categories = append(categories, c.GetStringValue())
	}
	return &version.Resource{
		Title:      fields["title"].GetStringValue(),
		PageID:     pageID,
		Categories: categories,
	}, nil
}

// List returns the ascending history of res
func (r *RemoteStore) List(ctx context.Context, res version.Resource) ([]version.Version, error) {
	in, err := resourceStruct(res, nil)
	if err != nil {
		return nil, err
	}

	out := new(structpb.Struct)
	if err := r.conn.Invoke(ctx, METHOD_LIST, in, out); err != nil {
		return nil, fmt.Errorf("list %q: %w", res.Title, err)
	}

	items := out.GetFields()["versions"].GetListValue().GetValues()
	versions := make([]version.Version, 0, len(items))
	for _, item := range items {
		v, err := versionFromFields(item.GetStructValue().GetFields())
		if err != nil {
			return nil, err
		}
		versions = append(versions, *v)
	}
	return versions, nil
}

func (r *RemoteStore) locate(ctx context.Context, res version.Resource, mode string, extra map[string]interface{}) (*version.Version, error) {
	if extra == nil {
		extra = map[string]interface{}{}
	}
	extra["mode"] = mode

	in, err := resourceStruct(res, extra)
	if err != nil {
		return nil, err
	}

	out := new(structpb.Struct)
	if err := r.conn.Invoke(ctx, METHOD_LOCATE, in, out); err != nil {
		return nil, fmt.Errorf("locate %s %q: %w", mode, res.Title, err)
	}

	fields := out.GetFields()
	if !fields["found"].GetBoolValue() {
		return nil, nil
	}
	return versionFromFields(fields)
}

func resourceStruct(res version.Resource, extra map[string]interface{}) (*structpb.Struct, error) {
	m := map[string]interface{}{
		"page_id": formatID(res.PageID),
		"title":   res.Title,
	}
	for k, v := range extra {
		m[k] = v
	}

	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	return s, nil
}

func versionFromFields(fields map[string]*structpb.Value) (*version.Version, error) {
	ts, err := timestamp.FromStorage(fields["timestamp"].GetStringValue())
	if err != nil {
		return nil, fmt.Errorf("decode version: %w", err)
	}
	id, err := parseID(fields["id"])
	if err != nil {
		return nil, fmt.Errorf("decode version: %w", err)
	}
	return &version.Version{ID: id, Timestamp: ts}, nil
}
