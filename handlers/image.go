package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

// ImageHandler proxies poster images from TMDB with an on-disk cache so the
// browser never talks to image.tmdb.org directly.
type ImageHandler struct {
	cacheDir   string
	httpc      *http.Client
	mu         sync.Mutex
	inProgress map[string]chan struct{} // prevent duplicate fetches
}

func NewImageHandler(cacheDir string) *ImageHandler {
	imgCacheDir := filepath.Join(cacheDir, "images")
	if err := os.MkdirAll(imgCacheDir, 0755); err != nil {
		log.Printf("[ImageProxy] Warning: could not create cache dir %s: %v", imgCacheDir, err)
	}

	return &ImageHandler{
		cacheDir: imgCacheDir,
		httpc: &http.Client{
			Timeout: 30 * time.Second,
		},
		inProgress: make(map[string]chan struct{}),
	}
}

// Proxy serves an upstream poster image, caching the bytes on disk.
// Query params:
//   - url: source image URL (required, image.tmdb.org only)
func (h *ImageHandler) Proxy(w http.ResponseWriter, r *http.Request) {
	sourceURL := r.URL.Query().Get("url")
	if sourceURL == "" {
		writeError(w, http.StatusBadRequest, "url parameter required")
		return
	}

	if !strings.HasPrefix(sourceURL, "https://image.tmdb.org/") {
		writeError(w, http.StatusForbidden, "URL not allowed")
		return
	}

	cacheKey := h.cacheKey(sourceURL)
	cachePath := filepath.Join(h.cacheDir, cacheKey)

	if h.serveFromCache(w, cachePath, "HIT") {
		return
	}

	// Prevent duplicate fetches for the same image.
	h.mu.Lock()
	if ch, exists := h.inProgress[cacheKey]; exists {
		h.mu.Unlock()
		<-ch
		if h.serveFromCache(w, cachePath, "HIT") {
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to load image")
		return
	}
	ch := make(chan struct{})
	h.inProgress[cacheKey] = ch
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.inProgress, cacheKey)
		close(ch)
		h.mu.Unlock()
	}()

	resp, err := h.httpc.Get(sourceURL)
	if err != nil {
		log.Printf("[ImageProxy] Fetch error for %s: %v", sourceURL, err)
		writeError(w, http.StatusBadGateway, "Failed to fetch image")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("[ImageProxy] Fetch returned %d for %s", resp.StatusCode, sourceURL)
		writeError(w, resp.StatusCode, "Image source error")
		return
	}

	tmpPath := cachePath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		log.Printf("[ImageProxy] Cache create error: %v", err)
		// Still serve the image, just don't cache.
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			writeError(w, http.StatusBadGateway, "Failed to fetch image")
			return
		}
		w.Header().Set("Content-Type", mimetype.Detect(data).String())
		w.Header().Set("X-Cache", "MISS-NOCACHE")
		w.Write(data)
		return
	}

	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(tmpPath)
		log.Printf("[ImageProxy] Cache write error: %v", err)
		writeError(w, http.StatusBadGateway, "Failed to fetch image")
		return
	}
	f.Close()

	// Atomic rename
	if err := os.Rename(tmpPath, cachePath); err != nil {
		os.Remove(tmpPath)
		log.Printf("[ImageProxy] Cache rename error: %v", err)
	}

	if !h.serveFromCache(w, cachePath, "MISS") {
		writeError(w, http.StatusInternalServerError, "Failed to read cached image")
	}
}

func (h *ImageHandler) serveFromCache(w http.ResponseWriter, cachePath, cacheStatus string) bool {
	data, err := os.ReadFile(cachePath)
	if err != nil {
		return false
	}

	w.Header().Set("Content-Type", mimetype.Detect(data).String())
	w.Header().Set("Cache-Control", "public, max-age=2592000") // 30 days
	w.Header().Set("X-Cache", cacheStatus)
	w.Write(data)
	return true
}

func (h *ImageHandler) cacheKey(url string) string {
	hash := sha256.Sum256([]byte(url))
	return hex.EncodeToString(hash[:16])
}

// ClearCache removes all cached images.
func (h *ImageHandler) ClearCache() error {
	entries, err := os.ReadDir(h.cacheDir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			os.Remove(filepath.Join(h.cacheDir, entry.Name()))
		}
	}
	return nil
}
