package webui

import (
	_ "embed"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

//go:embed board.html
var boardPage []byte

var allowedAssetExtensions = map[string]bool{
	".html": true, ".css": true, ".js": true, ".json": true,
	".png": true, ".jpg": true, ".jpeg": true, ".svg": true,
	".ico": true, ".woff2": true,
}

// boardPageHandler serves the built-in browser renderer.
func (webUI *WebUI) boardPageHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(boardPage)
}

// assetsHandler serves whitelisted files from the configured assets
// directory and refuses anything that resolves outside it.
func (webUI *WebUI) assetsHandler(w http.ResponseWriter, r *http.Request) {
	if webUI.Application == nil || webUI.Config.AssetsDir == "" {
		http.NotFound(w, r)
		return
	}

	fileName := r.PathValue("file")
	if fileName == "" {
		fileName = filepath.Base(r.URL.Path)
	}
	if !allowedAssetExtensions[strings.ToLower(filepath.Ext(fileName))] {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}
	if strings.Contains(fileName, "..") || strings.ContainsAny(fileName, `/\`) {
		http.Error(w, "Invalid file name", http.StatusBadRequest)
		return
	}

	assetsDir, err := filepath.Abs(webUI.Config.AssetsDir)
	if err != nil {
		http.Error(w, "Internal configuration error", http.StatusInternalServerError)
		return
	}
	absPath := filepath.Join(assetsDir, fileName)
	rel, err := filepath.Rel(assetsDir, absPath)
	if err != nil || strings.HasPrefix(rel, "..") {
		slog.Warn("potential path traversal attempt blocked", "path", absPath)
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}

	stat, err := os.Stat(absPath)
	if err != nil || stat.IsDir() {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}
	http.ServeFile(w, r, absPath)
}
