package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/jpeg"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-media/pkg/simplemedia/api"
	"github.com/tendant/simple-media/pkg/simplemedia/config"
	"github.com/tendant/simple-media/pkg/simplemedia/presets"
)

func setupRouter(t *testing.T) (http.Handler, *config.Components) {
	t.Helper()
	comps := presets.NewTesting(t)
	r := chi.NewRouter()
	api.NewHandlers(comps.Service, comps.Invalidator, comps.Registry, nil).Mount(r, nil)
	return r, comps
}

func jpegBytes(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x += 10 {
		img.Set(x, x%height, color.RGBA{B: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func multipartBody(t *testing.T, fields map[string]string, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func upload(t *testing.T, router http.Handler, path string, fields map[string]string, filename string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, fields, filename, data)
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func TestUploadImage_Success(t *testing.T) {
	router, _ := setupRouter(t)

	rr := upload(t, router, "/api/v1/owners/division/4/images",
		map[string]string{"intended_use": "hero", "caption": "Main hall", "flags": "featured, home_slider"},
		"hall.jpg", jpegBytes(t, 1600, 900))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	resp := decode[api.MediaResponse](t, rr)
	assert.Equal(t, "Division", resp.OwnerType)
	assert.Equal(t, int64(4), resp.OwnerID)
	assert.Equal(t, "image", resp.Kind)
	assert.Equal(t, "Main hall", resp.Caption)
	assert.Equal(t, []string{"featured", "home_slider"}, resp.Flags)
	assert.Equal(t, 1, resp.DisplayOrder)
	require.NotNil(t, resp.Width)
	assert.Equal(t, 1600, *resp.Width)
	require.NotNil(t, resp.URLs)
	assert.NotEmpty(t, resp.URLs.Primary)
	assert.NotEmpty(t, resp.URLs.Variants)
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
}

func TestUploadImage_Errors(t *testing.T) {
	router, _ := setupRouter(t)

	tests := []struct {
		name       string
		path       string
		fields     map[string]string
		filename   string
		data       []byte
		wantStatus int
		wantCode   string
		wantReason string
	}{
		{"hero too narrow", "/api/v1/owners/product/1/images", map[string]string{"intended_use": "hero"},
			"small.jpg", jpegBytes(t, 800, 450), http.StatusUnprocessableEntity, "upload_rejected", "too_narrow"},
		{"unsupported type", "/api/v1/owners/product/1/images", nil,
			"notes.txt", []byte("plain text is not an image"), http.StatusUnprocessableEntity, "upload_rejected", "unsupported_type"},
		{"unknown owner type", "/api/v1/owners/warehouse/1/images", nil,
			"a.jpg", jpegBytes(t, 100, 100), http.StatusBadRequest, "unknown_owner_type", ""},
		{"bad owner id", "/api/v1/owners/product/abc/images", nil,
			"a.jpg", jpegBytes(t, 100, 100), http.StatusBadRequest, "invalid_request", ""},
		{"bad intended use", "/api/v1/owners/product/1/images", map[string]string{"intended_use": "banner"},
			"a.jpg", jpegBytes(t, 100, 100), http.StatusBadRequest, "invalid_request", ""},
		{"missing file", "/api/v1/owners/product/1/images", map[string]string{"caption": "x"},
			"", nil, http.StatusBadRequest, "invalid_request", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := upload(t, router, tt.path, tt.fields, tt.filename, tt.data)
			assert.Equal(t, tt.wantStatus, rr.Code, rr.Body.String())
			resp := decode[api.ErrorResponse](t, rr)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
			assert.Equal(t, tt.wantReason, resp.Error.Reason)
		})
	}
}

func TestUploadVideo(t *testing.T) {
	router, _ := setupRouter(t)

	t.Run("embed URL", func(t *testing.T) {
		rr := upload(t, router, "/api/v1/owners/technology/2/videos",
			map[string]string{"url": "https://www.youtube.com/watch?v=abc123", "caption": "Demo"}, "", nil)
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
		resp := decode[api.MediaResponse](t, rr)
		assert.Equal(t, "video", resp.Kind)
		assert.Equal(t, "embed", resp.Source)
		assert.Equal(t, "https://www.youtube.com/watch?v=abc123", resp.PrimaryPath)
	})

	t.Run("host not allowed", func(t *testing.T) {
		rr := upload(t, router, "/api/v1/owners/technology/2/videos",
			map[string]string{"url": "https://videos.example.com/clip"}, "", nil)
		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
		assert.Equal(t, "host_not_allowed", decode[api.ErrorResponse](t, rr).Error.Reason)
	})

	t.Run("nothing supplied", func(t *testing.T) {
		rr := upload(t, router, "/api/v1/owners/technology/2/videos", map[string]string{"caption": "x"}, "", nil)
		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
		assert.Equal(t, "empty", decode[api.ErrorResponse](t, rr).Error.Reason)
	})
}

func TestMediaLifecycle(t *testing.T) {
	router, _ := setupRouter(t)

	first := decode[api.MediaResponse](t, upload(t, router, "/api/v1/owners/machine/9/images", nil, "a.jpg", jpegBytes(t, 640, 480)))
	second := decode[api.MediaResponse](t, upload(t, router, "/api/v1/owners/machine/9/images", nil, "b.jpg", jpegBytes(t, 640, 480)))
	assert.Equal(t, 1, first.DisplayOrder)
	assert.Equal(t, 2, second.DisplayOrder)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/owners/machine/9/media", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	list := decode[[]api.MediaResponse](t, rr)
	require.Len(t, list, 2)
	assert.Equal(t, first.ID, list[0].ID)

	req = httptest.NewRequest(http.MethodPatch, "/api/v1/media/"+second.ID,
		strings.NewReader(`{"caption":"Press line","flags":["home_slider"],"display_order":0}`))
	req.Header.Set("Content-Type", "application/json")
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	updated := decode[api.MediaResponse](t, rr)
	assert.Equal(t, "Press line", updated.Caption)
	assert.Equal(t, []string{"home_slider"}, updated.Flags)
	assert.Equal(t, 0, updated.DisplayOrder)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/media/"+second.ID, nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)

	for i := 0; i < 2; i++ {
		req = httptest.NewRequest(http.MethodDelete, "/api/v1/media/"+second.ID, nil)
		rr = httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusNoContent, rr.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/media/"+second.ID, nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestUpdateMedia_Invalid(t *testing.T) {
	router, _ := setupRouter(t)

	tests := []struct {
		name       string
		path       string
		body       string
		wantStatus int
	}{
		{"bad id", "/api/v1/media/not-a-uuid", `{}`, http.StatusBadRequest},
		{"empty body", "/api/v1/media/7d7b3f8e-8f0e-4bd6-9a44-5d1b8f5f3b11", ``, http.StatusBadRequest},
		{"negative order", "/api/v1/media/7d7b3f8e-8f0e-4bd6-9a44-5d1b8f5f3b11", `{"display_order":-1}`, http.StatusBadRequest},
		{"missing media", "/api/v1/media/7d7b3f8e-8f0e-4bd6-9a44-5d1b8f5f3b11", `{"caption":"x"}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPatch, tt.path, strings.NewReader(tt.body))
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)
			assert.Equal(t, tt.wantStatus, rr.Code, rr.Body.String())
		})
	}
}

func TestCacheHandler(t *testing.T) {
	router, comps := setupRouter(t)
	ctx := context.Background()

	require.NoError(t, comps.Cache.Set(ctx, "product:pump-x", []byte("page"), 0))
	require.NoError(t, comps.Cache.Set(ctx, "products:index", []byte("list"), 0))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/cache/invalidate",
		strings.NewReader(`{"content_type":"product","identifier":"pump-x"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	resp := decode[api.InvalidateResponse](t, rr)
	assert.Contains(t, resp.Evicted, "product:pump-x")
	assert.Contains(t, resp.Evicted, "products:index")
	_, err := comps.Cache.Get(ctx, "product:pump-x")
	assert.Error(t, err)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/cache/invalidate", strings.NewReader(`{"identifier":"pump-x"}`))
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/cache/rules", nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	rules := decode[[]api.RuleResponse](t, rr)
	require.Len(t, rules, len(comps.Registry.Rules()))
	assert.Equal(t, "home:v1", rules[0].Key)
	assert.Equal(t, 60, rules[0].TTLMinutes)
}

func TestMount_Middleware(t *testing.T) {
	comps := presets.NewTesting(t)
	handlers := api.NewHandlers(comps.Service, comps.Invalidator, comps.Registry, nil)

	t.Run("defaults", func(t *testing.T) {
		r := chi.NewRouter()
		handlers.Mount(r, nil)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/owners/Division/1/media", nil)
		req.Header.Set("Origin", "https://admin.example.com")
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "no-cache", rr.Header().Get("Cache-Control"))
		assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
		assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
	})

	t.Run("cors and max age", func(t *testing.T) {
		r := chi.NewRouter()
		handlers.Mount(r, nil, api.WithCORS("https://admin.example.com"), api.WithCacheMaxAge(time.Minute))

		req := httptest.NewRequest(http.MethodGet, "/api/v1/owners/Division/1/media", nil)
		req.Header.Set("Origin", "https://admin.example.com")
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "private, max-age=60", rr.Header().Get("Cache-Control"))
		assert.Equal(t, "https://admin.example.com", rr.Header().Get("Access-Control-Allow-Origin"))

		preflight := httptest.NewRequest(http.MethodOptions, "/api/v1/media/"+uuid.NewString(), nil)
		preflight.Header.Set("Origin", "https://admin.example.com")
		rr = httptest.NewRecorder()
		r.ServeHTTP(rr, preflight)
		assert.Equal(t, http.StatusNoContent, rr.Code)
		assert.Contains(t, rr.Header().Get("Access-Control-Allow-Methods"), "DELETE")

		del := httptest.NewRequest(http.MethodDelete, "/api/v1/media/"+uuid.NewString(), nil)
		rr = httptest.NewRecorder()
		r.ServeHTTP(rr, del)
		assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))
	})
}
