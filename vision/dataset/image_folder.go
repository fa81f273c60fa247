package dataset

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrPathNotFound reports a configured class directory that does not exist.
// Missing directories must fail loudly: a silent zero count would feed NaN
// weights into the loss.
var ErrPathNotFound = errors.New("class directory not found")

var defaultExtensions = []string{".jpg", ".jpeg", ".png"}

// ClassMap maps a class index to the directory name holding that class's
// samples. Index order defines label semantics: index 0 is the negative
// class, index 1 the positive one.
type ClassMap []string

// DefaultClassMap matches the chest X-ray dataset layout: label 0 is
// NORMAL, label 1 is PNEUMONIA.
var DefaultClassMap = ClassMap{"NORMAL", "PNEUMONIA"}

func (cm ClassMap) Validate() error {
	if len(cm) == 0 {
		return fmt.Errorf("class map is empty")
	}
	seen := make(map[string]bool, len(cm))
	for i, name := range cm {
		if name == "" {
			return fmt.Errorf("class %d has an empty directory name", i)
		}
		if seen[name] {
			return fmt.Errorf("class directory %q mapped to more than one index", name)
		}
		seen[name] = true
	}
	return nil
}

// ImageFolderDataset is a labeled dataset rooted at a directory with one
// subdirectory per class. Unlike a glob over arbitrary subdirectories, the
// class map pins each directory to a fixed label index so that the weighted
// loss and the checkpointed model agree on which class is which.
type ImageFolderDataset struct {
	imagePaths []string
	labels     []int
	classes    ClassMap
}

// NewImageFolderDataset scans root/<dir>/ for every class in the map, in
// index order. Every mapped directory must exist.
func NewImageFolderDataset(root string, classes ClassMap) (*ImageFolderDataset, error) {
	if err := classes.Validate(); err != nil {
		return nil, err
	}

	ds := &ImageFolderDataset{classes: classes}

	for idx, name := range classes {
		classDir := filepath.Join(root, name)
		files, err := listImageFiles(classDir)
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			ds.imagePaths = append(ds.imagePaths, f)
			ds.labels = append(ds.labels, idx)
		}
	}

	return ds, nil
}

// listImageFiles returns the image files directly under dir, sorted for
// deterministic ordering. A missing dir is ErrPathNotFound.
func listImageFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrPathNotFound, dir)
		}
		return nil, fmt.Errorf("failed to read %s: %v", dir, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !hasImageExtension(entry.Name()) {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(files)
	return files, nil
}

func hasImageExtension(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range defaultExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Len returns the number of items in the dataset.
func (d *ImageFolderDataset) Len() int {
	return len(d.imagePaths)
}

// GetItem returns the image path and label at the given index.
func (d *ImageFolderDataset) GetItem(index int) (string, int, error) {
	if index < 0 || index >= len(d.imagePaths) {
		return "", 0, fmt.Errorf("index %d out of range [0, %d)", index, len(d.imagePaths))
	}
	return d.imagePaths[index], d.labels[index], nil
}

// NumClasses returns the number of classes.
func (d *ImageFolderDataset) NumClasses() int {
	return len(d.classes)
}

// ClassNames returns the directory names in label-index order.
func (d *ImageFolderDataset) ClassNames() []string {
	return append([]string(nil), d.classes...)
}

// ClassCounts returns the per-class sample counts in label-index order.
func (d *ImageFolderDataset) ClassCounts() []int {
	counts := make([]int, len(d.classes))
	for _, label := range d.labels {
		counts[label]++
	}
	return counts
}

// String returns a printable summary of the dataset.
func (d *ImageFolderDataset) String() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("ImageFolderDataset: %d samples, %d classes\n", len(d.imagePaths), len(d.classes)))
	for i, count := range d.ClassCounts() {
		sb.WriteString(fmt.Sprintf("  [%d] %s: %d samples\n", i, d.classes[i], count))
	}
	return sb.String()
}
