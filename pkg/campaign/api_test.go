package campaign

import (
	"context"
	"testing"
)

// fakeRequester records paths and returns a canned payload.
type fakeRequester struct {
	gets    []string
	posts   []string
	payload []byte
}

func (f *fakeRequester) Get(ctx context.Context, path string) ([]byte, error) {
	f.gets = append(f.gets, path)
	return f.payload, nil
}

func (f *fakeRequester) Post(ctx context.Context, path string, body []byte) ([]byte, error) {
	f.posts = append(f.posts, path)
	return []byte(`{"status":"queued"}`), nil
}

func TestFetchPage_RequestShape(t *testing.T) {
	req := &fakeRequester{payload: []byte(`{"data": [], "pagination": {"has_more": false}}`)}
	api := NewAPI(req, 25)

	if _, err := api.FetchPage(context.Background(), 3); err != nil {
		t.Fatalf("FetchPage failed: %v", err)
	}
	if len(req.gets) != 1 || req.gets[0] != "/campaigns?page=3&limit=25" {
		t.Errorf("Paths = %v, want /campaigns?page=3&limit=25", req.gets)
	}
}

func TestNewAPI_DefaultLimit(t *testing.T) {
	req := &fakeRequester{payload: []byte(`{"data": []}`)}
	api := NewAPI(req, 0)

	if _, err := api.FetchPage(context.Background(), 1); err != nil {
		t.Fatalf("FetchPage failed: %v", err)
	}
	if req.gets[0] != "/campaigns?page=1&limit=50" {
		t.Errorf("Path = %s, want default limit 50", req.gets[0])
	}
}

func TestTriggerSync_RequestShape(t *testing.T) {
	req := &fakeRequester{}
	api := NewAPI(req, 50)

	if err := api.TriggerSync(context.Background(), "c-42"); err != nil {
		t.Fatalf("TriggerSync failed: %v", err)
	}
	if len(req.posts) != 1 || req.posts[0] != "/campaigns/c-42/sync" {
		t.Errorf("Paths = %v, want /campaigns/c-42/sync", req.posts)
	}
}
