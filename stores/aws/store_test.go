package aws

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"design-studio/stores/storetest"
)

// fakeS3 is an in-memory bucket. It pages listings two keys at a time to
// exercise the paginator.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte)}
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(append([]byte(nil), data...)))}, nil
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) HeadObject(ctx context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.objects[aws.ToString(in.Key)]; !ok {
		return nil, &s3types.NotFound{}
	}
	return &s3.HeadObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) && k > aws.ToString(in.ContinuationToken) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	if len(keys) > 2 {
		keys = keys[:2]
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(keys[1])
	}
	for _, k := range keys {
		out.Contents = append(out.Contents, s3types.Object{Key: aws.String(k)})
	}
	return out, nil
}

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) storetest.Store {
		return NewStoreWithClient(newFakeS3(), "designs-bucket")
	})
}

func TestObjectKey(t *testing.T) {
	key, err := objectKey("user-1", designsPrefix, "d1")
	if err != nil {
		t.Fatalf("objectKey() failed: %v", err)
	}
	if key != "user-1/designs/d1.json" {
		t.Errorf("objectKey() = %q", key)
	}

	for _, bad := range [][2]string{{"user-1", "../x"}, {"user-1", ""}, {"..", "d1"}, {"a/b", "d1"}, {"user-1", `a\b`}} {
		if _, err := objectKey(bad[0], designsPrefix, bad[1]); err == nil {
			t.Errorf("objectKey(%q, %q) should fail", bad[0], bad[1])
		}
	}
}

func TestListPagesThroughAllKeys(t *testing.T) {
	fake := newFakeS3()
	s := NewStoreWithClient(fake, "b")
	for _, k := range []string{"u/designs/a.json", "u/designs/b.json", "u/designs/c.json", "u/designs/d.json", "u/designs/e.json", "v/designs/z.json"} {
		fake.objects[k] = []byte(`{"id":"` + k + `"}`)
	}
	list, err := s.List(context.Background(), "u")
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(list) != 5 {
		t.Errorf("List() returned %d designs, want 5", len(list))
	}
}
