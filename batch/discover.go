// Package batch - walks a directory of categorized videos and runs every
// matching video through detection, rendering and encoding.
package batch

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// OutputExtension is the container extension of every output video.
const OutputExtension = ".mp4"

// Job is a single video to process.
type Job struct {
	// Category is the name of the directory the video was found in.
	Category string
	// Input is the source video.
	Input string
	// Output is the mirrored output path: <output>/<category>/<stem>.mp4.
	Output string
}

// LabelsPath returns the path of the labels file written next to the output.
func (j Job) LabelsPath() string {
	return strings.TrimSuffix(j.Output, filepath.Ext(j.Output)) + ".json"
}

// NormalizeExtension returns ext with exactly one leading dot.
func NormalizeExtension(ext string) string {
	return "." + strings.TrimLeft(ext, ".")
}

// Discover lists the videos under input/<category>/ whose extension matches.
// Only the immediate subdirectories of input are categories; files at the
// category level and directories inside a category are skipped. Jobs are
// sorted by category, then by file name.
//
// Arguments:
//   - input: The input root.
//   - output: The output root the job paths are mirrored into.
//   - extension: The file extension to match, with or without the leading dot. Case sensitive.
//   - firstOnly: Stop after the first category directory, whether or not it
//     holds a matching video. At most one job is returned.
//
// Returns:
//   - []Job: The jobs.
//   - error: An error if a directory cannot be read.
func Discover(input, output, extension string, firstOnly bool) ([]Job, error) {
	if strings.Trim(extension, ".") == "" {
		return nil, errors.New("extension must not be empty")
	}
	ext := NormalizeExtension(extension)

	// os.ReadDir returns entries sorted by file name.
	categories, err := os.ReadDir(input)
	if err != nil {
		return nil, errors.Wrap(err, "read input directory")
	}

	var jobs []Job
	for _, category := range categories {
		if !isDir(input, category) {
			continue
		}

		dir := filepath.Join(input, category.Name())
		files, err := os.ReadDir(dir)
		if err != nil {
			return nil, errors.Wrapf(err, "read category %s", category.Name())
		}

		for _, file := range files {
			if isDir(dir, file) || filepath.Ext(file.Name()) != ext {
				continue
			}
			stem := strings.TrimSuffix(file.Name(), ext)
			if stem == "" {
				continue
			}
			jobs = append(jobs, Job{
				Category: category.Name(),
				Input:    filepath.Join(dir, file.Name()),
				Output:   filepath.Join(output, category.Name(), stem+OutputExtension),
			})
			if firstOnly {
				break
			}
		}
		if firstOnly {
			break
		}
	}

	return jobs, nil
}

// isDir follows symlinks, which os.ReadDir entries do not.
func isDir(parent string, entry os.DirEntry) bool {
	if entry.Type()&os.ModeSymlink == 0 {
		return entry.IsDir()
	}
	info, err := os.Stat(filepath.Join(parent, entry.Name()))
	return err == nil && info.IsDir()
}
