package packer

import (
	"fmt"
	"strings"

	"github.com/dmitrijs2005/bundler/internal/bundler/entrypath"
	"github.com/dmitrijs2005/bundler/internal/bundler/model"
	"github.com/dmitrijs2005/bundler/internal/bundler/vfs"
)

// DefaultFilenameTemplate is used when the client supplies no output name.
const DefaultFilenameTemplate = "nga_data_archive"

// NameGenerator produces the output and hash file URIs for the archives of
// one job: <staging>/<jobID>/<template>_<archiveID>.<ext>, with the sibling
// hash file swapping the archive extension for the digest's.
type NameGenerator struct {
	stagingArea string
	jobID       string
	template    string
	archiveType model.ArchiveType
	hashType    model.HashType
}

// NewNameGenerator constructs a generator for one job. A client-supplied
// template keeps its stem; any extension it carried is dropped because the
// archiver appends the type's own.
func NewNameGenerator(stagingArea, jobID, template string, t model.ArchiveType, h model.HashType) *NameGenerator {
	if template == "" {
		template = DefaultFilenameTemplate
	} else if ext := entrypath.Extension(template); ext != "" {
		template = strings.TrimSuffix(template, ext)
	}
	return &NameGenerator{
		stagingArea: stagingArea,
		jobID:       jobID,
		template:    template,
		archiveType: t,
		hashType:    h,
	}
}

// OutputDirectory returns the job's directory under the staging area.
func (g *NameGenerator) OutputDirectory() string {
	return vfs.Join(g.stagingArea, g.jobID)
}

// OutputFile returns the URI of the archive with the given id.
func (g *NameGenerator) OutputFile(archiveID int64) string {
	name := fmt.Sprintf("%s_%d.%s", g.template, archiveID, g.archiveType.Extension())
	return vfs.Join(g.OutputDirectory(), name)
}

// HashFile returns the URI of the hash file accompanying an archive.
func (g *NameGenerator) HashFile(outputFile string) string {
	stem := strings.TrimSuffix(outputFile, "."+g.archiveType.Extension())
	return stem + "." + g.hashType.Extension()
}

// URLGenerator turns staged artifact URIs into client-facing HTTP URLs by
// replacing the configured base directory with the configured base URL.
type URLGenerator struct {
	baseDir string
	baseURL string
}

// NewURLGenerator constructs a URLGenerator.
func NewURLGenerator(baseDir, baseURL string) *URLGenerator {
	return &URLGenerator{
		baseDir: strings.TrimSuffix(baseDir, "/"),
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

// ToURL converts a staged file URI to its download URL. Backslashes are
// normalized to forward slashes.
func (g *URLGenerator) ToURL(uri string) string {
	u, err := vfs.Parse(uri)
	if err != nil {
		return ""
	}
	p := strings.ReplaceAll(u.Path, `\`, "/")
	if g.baseDir != "" {
		p = strings.Replace(p, g.baseDir, "", 1)
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return g.baseURL + p
}
