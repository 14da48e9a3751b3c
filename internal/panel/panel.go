package panel

import (
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path"
)

//go:embed web/*
var content embed.FS

// Handler returns an http.Handler that serves the control page.
//
// When dir is non-empty and exists, assets are served from the filesystem
// so the page can be edited without a rebuild. Otherwise the embedded copy
// is used. Panics if the embedded assets cannot be loaded (build error).
func Handler(dir string) http.Handler {
	var fileSystem http.FileSystem

	if dir != "" {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			fileSystem = http.Dir(dir)
		}
	}

	if fileSystem == nil {
		webFS, err := fs.Sub(content, "web")
		if err != nil {
			panic(fmt.Sprintf("panel: failed to load embedded web assets: %v", err))
		}
		fileSystem = http.FS(webFS)
	}

	fileServer := http.FileServer(fileSystem)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache, must-revalidate")

		upath := path.Clean(r.URL.Path)
		if upath == "." || upath == "/" {
			r.URL.Path = "/"
			fileServer.ServeHTTP(w, r)
			return
		}

		f, err := fileSystem.Open(upath[1:])
		if err != nil {
			r.URL.Path = "/"
			fileServer.ServeHTTP(w, r)
			return
		}
		f.Close()

		fileServer.ServeHTTP(w, r)
	})
}
