// Package archive stores captured still frames (JPEG) and recordings
// (AVI) on disk, indexed by a small JSON manifest, mirroring the teacher's
// project storage layout.
package archive

import (
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

const (
	imagesDir = "images"
	videosDir = "videos"
	infoFile  = "info.json"
	imageExt  = ".jpg"
	videoExt  = ".avi"
	filePerm  = 0660
	dirPerm   = 0770
)

// Manifest tracks how many images have been captured and which one is
// most recent.
type Manifest struct {
	MaxNumber   int       `json:"maxNumber"`
	LatestImage string    `json:"latestImage"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Archive is one named capture session's on-disk directory.
type Archive struct {
	Name string

	rootDir string
}

// Open creates (if necessary) name's image/video directories under rootDir
// and returns an Archive bound to them.
func Open(rootDir, name string) (*Archive, error) {
	a := &Archive{Name: name, rootDir: path.Join(rootDir, name)}
	if err := os.MkdirAll(a.imageDir(), dirPerm); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(a.videoDir(), dirPerm); err != nil {
		return nil, err
	}
	if _, err := os.Stat(a.manifestPath()); os.IsNotExist(err) {
		if err := a.saveManifest(&Manifest{}); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// SaveImage writes a JPEG-encoded frame and advances the manifest.
func (a *Archive) SaveImage(jpeg []byte) (string, error) {
	manifest, err := a.loadManifest()
	if err != nil {
		return "", err
	}
	name := fmt.Sprintf("%s-%d%s", a.Name, manifest.MaxNumber, imageExt)
	if err := os.WriteFile(a.ImagePath(name), jpeg, filePerm); err != nil {
		return "", err
	}
	manifest.MaxNumber++
	manifest.LatestImage = name
	if err := a.saveManifest(manifest); err != nil {
		return "", err
	}
	return name, nil
}

// LatestImage returns the bytes of the most recently captured image.
func (a *Archive) LatestImage() ([]byte, error) {
	manifest, err := a.loadManifest()
	if err != nil {
		return nil, err
	}
	if manifest.LatestImage == "" {
		return nil, fmt.Errorf("archive: no image captured yet")
	}
	return os.ReadFile(a.ImagePath(manifest.LatestImage))
}

// ListImages returns every captured image's filename, in directory order.
func (a *Archive) ListImages() ([]string, error) {
	entries, err := os.ReadDir(a.imageDir())
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), imageExt) {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

// VideoPath returns the path a recording named name should be written to.
func (a *Archive) VideoPath(name string) string {
	return path.Join(a.videoDir(), name+videoExt)
}

// ImagePath returns the full path of image name within this archive.
func (a *Archive) ImagePath(name string) string {
	return path.Join(a.imageDir(), name)
}

// RootDir returns the archive's root directory, the file tree served by
// pkg/archive's webdav server.
func (a *Archive) RootDir() string { return a.rootDir }

// Clear removes the archive's entire directory tree.
func (a *Archive) Clear() error { return os.RemoveAll(a.rootDir) }

func (a *Archive) imageDir() string { return path.Join(a.rootDir, imagesDir) }
func (a *Archive) videoDir() string { return path.Join(a.rootDir, videosDir) }
func (a *Archive) manifestPath() string {
	return path.Join(a.imageDir(), infoFile)
}

func (a *Archive) loadManifest() (*Manifest, error) {
	data, err := os.ReadFile(a.manifestPath())
	if err != nil {
		return nil, fmt.Errorf("archive: read manifest: %w", err)
	}
	m := &Manifest{}
	if err := json.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("archive: unmarshal manifest: %w", err)
	}
	return m, nil
}

func (a *Archive) saveManifest(m *Manifest) error {
	m.UpdatedAt = time.Now()
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return os.WriteFile(a.manifestPath(), data, filePerm)
}
