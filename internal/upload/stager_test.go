package upload

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/textproto"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/studio-desk/internal/storage"
	"github.com/spec-kit/studio-desk/internal/storage/mock"
	apperrors "github.com/spec-kit/studio-desk/pkg/util/errorutil"
)

type part struct {
	name        string
	contentType string
	body        []byte
}

func fileHeaders(t *testing.T, parts ...part) []*multipart.FileHeader {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, p := range parts {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="files"; filename="`+p.name+`"`)
		if p.contentType != "" {
			h.Set("Content-Type", p.contentType)
		}
		fw, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = fw.Write(p.body)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	form, err := multipart.NewReader(&buf, w.Boundary()).ReadForm(1 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })
	return form.File["files"]
}

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

func TestStageStoresAcceptedFiles(t *testing.T) {
	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	stager := NewStager(store, 1<<20, zap.NewNop())

	staged, err := stager.Stage(context.Background(), fileHeaders(t,
		part{name: "brief.txt", contentType: "text/plain; charset=utf-8", body: []byte("cut at 0:42")},
		part{name: "frame.png", contentType: "application/octet-stream", body: pngHeader},
	))
	require.NoError(t, err)
	require.Len(t, staged, 2)

	assert.Equal(t, "brief.txt", staged[0].OriginalName)
	assert.Equal(t, "text/plain", staged[0].MimeType)
	assert.Equal(t, int64(11), staged[0].Size)
	assert.Equal(t, "image/png", staged[1].MimeType, "generic type is sniffed")

	rc, err := store.Open(context.Background(), staged[1].StoredPath)
	require.NoError(t, err)
	rc.Close()
}

func TestStageRejectsDisallowedTypeAndCleansUp(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mock.NewMockBlobStore(ctrl)
	stager := NewStager(store, 1<<20, zap.NewNop())

	var storedKey string
	store.EXPECT().Put(gomock.Any(), gomock.Any(), gomock.Any(), int64(3), "text/plain").
		DoAndReturn(func(_ context.Context, key string, _ interface{}, _ int64, _ string) error {
			storedKey = key
			return nil
		})
	store.EXPECT().Remove(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, key string) error {
		assert.Equal(t, storedKey, key)
		return nil
	})

	_, err := stager.Stage(context.Background(), fileHeaders(t,
		part{name: "ok.txt", contentType: "text/plain", body: []byte("abc")},
		part{name: "run.exe", contentType: "application/x-msdownload", body: []byte("MZ")},
	))
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation))
}

func TestStageRejectsOversizedFileBeforeStoring(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mock.NewMockBlobStore(ctrl)
	stager := NewStager(store, 4, zap.NewNop())

	_, err := stager.Stage(context.Background(), fileHeaders(t,
		part{name: "big.txt", contentType: "text/plain", body: []byte("too large")},
	))
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation))
}

func TestStageStoreFailureIsIOFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mock.NewMockBlobStore(ctrl)
	store.EXPECT().Put(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("disk full"))
	stager := NewStager(store, 1<<20, zap.NewNop())

	_, err := stager.Stage(context.Background(), fileHeaders(t,
		part{name: "a.pdf", contentType: "application/pdf", body: []byte("%PDF-1.4")},
	))
	assert.True(t, apperrors.IsCode(err, apperrors.CodeIOFailure))
}

func TestNormalizeType(t *testing.T) {
	assert.Equal(t, "video/mov", NormalizeType("video/quicktime"))
	assert.Equal(t, "audio/mp3", NormalizeType("Audio/MPEG"))
	assert.Equal(t, "text/plain", NormalizeType("text/plain; charset=utf-8"))
	assert.True(t, Allowed(NormalizeType("video/x-matroska")))
	assert.False(t, Allowed("application/x-msdownload"))
}
