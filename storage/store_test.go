package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/christianebacani/yoonet-quest-system-sub000/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocal_PutRelease(t *testing.T) {
	dir := t.TempDir()
	st, err := NewLocal(dir)
	require.NoError(t, err)
	ctx := context.Background()

	h, err := st.Put(ctx, "Report.PDF", strings.NewReader("hello"), 5)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(h, ".pdf"))

	p, err := st.Path(h)
	require.NoError(t, err)
	data, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	require.NoError(t, st.Release(ctx, h))
	_, err = os.Stat(p)
	assert.True(t, os.IsNotExist(err))
	assert.NoError(t, st.Release(ctx, h), "releasing twice is fine")
}

func TestLocal_ShortWriteLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	st, err := NewLocal(dir)
	require.NoError(t, err)

	_, err = st.Put(context.Background(), "a.txt", strings.NewReader("abc"), 10)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLocal_RejectsTraversal(t *testing.T) {
	st, err := NewLocal(t.TempDir())
	require.NoError(t, err)
	assert.ErrorIs(t, st.Release(context.Background(), "../etc/passwd"), ErrInvalidHandle)
	_, err = st.Path(filepath.Join("a", "b"))
	assert.ErrorIs(t, err, ErrInvalidHandle)
}

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]string
	failPut bool
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.failPut {
		return nil, errors.New("boom")
	}
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = string(b)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3_PutRelease(t *testing.T) {
	fake := &fakeS3{objects: map[string]string{}}
	st := newS3(fake, "bucket", "/submissions/")
	ctx := context.Background()

	h, err := st.Put(ctx, "notes.txt", strings.NewReader("data"), 4)
	require.NoError(t, err)
	assert.Equal(t, "data", fake.objects["bucket/submissions/"+h])

	require.NoError(t, st.Release(ctx, h))
	assert.Empty(t, fake.objects)
}

func TestS3_PutFailure(t *testing.T) {
	st := newS3(&fakeS3{objects: map[string]string{}, failPut: true}, "bucket", "")
	_, err := st.Put(context.Background(), "x.zip", strings.NewReader("z"), 1)
	assert.Error(t, err)
}

func TestNew_Modes(t *testing.T) {
	st, err := New(context.Background(), config.StorageConfig{Mode: ModeLocal, LocalDir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &Local{}, st)

	_, err = New(context.Background(), config.StorageConfig{Mode: "ftp"})
	assert.Error(t, err)

	_, err = New(context.Background(), config.StorageConfig{Mode: ModeS3})
	assert.Error(t, err, "bucket is required")
}
