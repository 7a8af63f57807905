package handlers

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icon-forge/iconforge/internal/imaging"
	"github.com/icon-forge/iconforge/internal/pool"
	"github.com/icon-forge/iconforge/internal/queue"
)

const testSVG = `<svg xmlns="http://www.w3.org/2000/svg" width="64" height="64"><circle cx="32" cy="32" r="30"/></svg>`

func newTestHandler(t *testing.T) (*ConvertHandler, *queue.Queue) {
	t.Helper()
	q := queue.New(4)
	h := NewConvertHandler(q, nil, 5*time.Second, zerolog.Nop())
	return h, q
}

// drainOnce pulls the next job off q and settles it with the given outcome,
// simulating a worker pool (C4) without spinning one up.
func drainOnce(t *testing.T, q *queue.Queue, complete func(payload interface{}) (interface{}, error)) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		id, payload, ok := q.Take()
		if !ok {
			time.Sleep(time.Millisecond)
			continue
		}
		value, err := complete(payload)
		if err != nil {
			q.Fail(id, err)
		} else {
			q.Complete(id, value)
		}
		return
	}
	t.Fatal("timed out waiting for a job to enqueue")
}

func newConvertRequest(t *testing.T, filename, content string, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)

	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/convert", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestConvertHandler_HappyPath_ReturnsArtifact(t *testing.T) {
	h, q := newTestHandler(t)

	req := newConvertRequest(t, "icon.svg", testSVG, nil)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		drainOnce(t, q, func(payload interface{}) (interface{}, error) {
			job, ok := payload.(imaging.Job)
			require.True(t, ok)
			assert.Equal(t, imaging.FormatICO, job.Format)
			return []imaging.Artifact{{Bytes: []byte("fake-ico-bytes"), Filename: "icon.ico", MimeType: "image/x-icon"}}, nil
		})
	}()

	h.Convert(rec, req)
	<-done

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/x-icon", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="icon.ico"`, rec.Header().Get("Content-Disposition"))
	assert.NotEmpty(t, rec.Header().Get("X-Processing-Time-Ms"))
	assert.Equal(t, "fake-ico-bytes", rec.Body.String())
}

func TestConvertHandler_MissingFile_Returns400(t *testing.T) {
	h, _ := newTestHandler(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("format", "ico"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/convert", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()

	h.Convert(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConvertHandler_UnsupportedExtension_Returns400(t *testing.T) {
	h, _ := newTestHandler(t)

	req := newConvertRequest(t, "icon.bmp", "whatever", nil)
	rec := httptest.NewRecorder()

	h.Convert(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConvertHandler_RejectsUnsafeSVG(t *testing.T) {
	h, _ := newTestHandler(t)

	malicious := `<svg xmlns="http://www.w3.org/2000/svg"><script>alert(1)</script></svg>`
	req := newConvertRequest(t, "icon.svg", malicious, nil)
	rec := httptest.NewRecorder()

	h.Convert(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
}

func TestConvertHandler_InvalidFormatOption_Returns400(t *testing.T) {
	h, _ := newTestHandler(t)

	req := newConvertRequest(t, "icon.svg", testSVG, map[string]string{"format": "bmp"})
	rec := httptest.NewRecorder()

	h.Convert(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConvertHandler_PNGSourceRequiresDimensions(t *testing.T) {
	h, _ := newTestHandler(t)

	pngBytes := append([]byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, []byte("restofpng")...)
	req := newConvertRequest(t, "icon.png", string(pngBytes), nil)
	rec := httptest.NewRecorder()

	h.Convert(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConvertHandler_PNGSourceWithDimensions_Succeeds(t *testing.T) {
	h, q := newTestHandler(t)

	pngBytes := append([]byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, []byte("restofpng")...)
	req := newConvertRequest(t, "icon.png", string(pngBytes), map[string]string{
		"sourceWidth":  "128",
		"sourceHeight": "128",
	})
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		drainOnce(t, q, func(payload interface{}) (interface{}, error) {
			job := payload.(imaging.Job)
			assert.Equal(t, 128, job.SourceDimensions.Width)
			assert.Equal(t, 128, job.SourceDimensions.Height)
			return []imaging.Artifact{{Bytes: []byte("png-ico"), Filename: "icon.ico", MimeType: "image/x-icon"}}, nil
		})
	}()

	h.Convert(rec, req)
	<-done

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestConvertHandler_QueueFull_Returns503(t *testing.T) {
	q := queue.New(1)
	h := NewConvertHandler(q, nil, 5*time.Second, zerolog.Nop())

	// Fill the queue with a job that never gets taken.
	_, _, err := q.Enqueue(imaging.Job{}, time.Now().Add(time.Minute))
	require.NoError(t, err)

	req := newConvertRequest(t, "icon.svg", testSVG, nil)
	rec := httptest.NewRecorder()

	h.Convert(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestConvertHandler_WorkerCrash_Returns500(t *testing.T) {
	h, q := newTestHandler(t)

	req := newConvertRequest(t, "icon.svg", testSVG, nil)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		drainOnce(t, q, func(payload interface{}) (interface{}, error) {
			return nil, pool.ErrWorkerCrashed
		})
	}()

	h.Convert(rec, req)
	<-done

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
