package app

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMLFaceDetector(t *testing.T) {
	root := writeLibrary(t, "face.png")
	uri := "file://" + filepath.ToSlash(filepath.Join(root, "face.png"))

	t.Run("parses detections", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/faces", r.URL.Path)
			file, header, err := r.FormFile("image")
			if !assert.NoError(t, err) {
				return
			}
			defer file.Close()
			assert.Equal(t, "face.png", header.Filename)
			assert.Equal(t, "image/png", header.Header.Get("Content-Type"))
			_, _ = io.WriteString(w, `{"faces":[
				{"trackingId":12,"bounds":{"x":1,"y":2,"width":3,"height":4}},
				{"trackingId":"abc"},
				{"bounds":{"x":0,"y":0,"width":1,"height":1}}
			]}`)
		}))
		defer srv.Close()

		faces, err := NewMLFaceDetector(srv.URL, 5*time.Second).Detect(context.Background(), uri)
		require.NoError(t, err)
		require.Len(t, faces, 3)
		assert.Equal(t, "12", faces[0].ID)
		assert.Equal(t, &Rect{X: 1, Y: 2, Width: 3, Height: 4}, faces[0].Bounds)
		assert.Equal(t, "abc", faces[1].ID)
		assert.Nil(t, faces[1].Bounds)
		assert.NotEmpty(t, faces[2].ID)
		assert.Equal(t, uri, faces[2].MediaID)
	})

	t.Run("server failure", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		_, err := NewMLFaceDetector(srv.URL, 5*time.Second).Detect(context.Background(), uri)
		assert.ErrorIs(t, err, ErrRemoteStatus)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := NewMLFaceDetector("http://127.0.0.1:1", time.Second).Detect(context.Background(), "file:///nowhere/x.jpg")
		assert.Error(t, err)
	})
}
