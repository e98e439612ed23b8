// Package reproduce implements the driver's reproducer archive: a tar
// file capturing the command line and tool version of a run, written to
// the path the caller opens so a failing link can be replayed elsewhere
// (spec.md section 4.4, startup step 4).
package reproduce

import (
	"archive/tar"
	"fmt"
	"os"
	"strings"

	"github.com/xyproto/env/v2"
)

// EnvVar is the environment variable that enables a reproducer archive
// without passing --reproduce on the command line, mirroring how LLD's
// own LLD_REPRODUCE toggle works.
const EnvVar = "LLD_REPRODUCE"

// Path returns the archive path to write, preferring an explicit
// --reproduce flag value over the LLD_REPRODUCE environment variable.
// It returns "" when neither is set, meaning no archive should be
// produced.
func Path(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return env.Str(EnvVar, "")
}

// Archive accumulates the files that go into a reproducer tarball.
type Archive struct {
	path string
	f    *os.File
	tw   *tar.Writer
}

// Open creates the archive file at path and prepares it for writes. The
// caller must call Close to flush the tar trailer and close the file.
func Open(path string) (*Archive, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("reproduce: %w", err)
	}

	return &Archive{path: path, f: f, tw: tar.NewWriter(f)}, nil
}

// WriteResponseFile writes the response.txt member: the full argv the
// driver was invoked with, one argument per line, shell-quoted where
// needed.
func (a *Archive) WriteResponseFile(args []string) error {
	var b strings.Builder
	for _, arg := range args {
		b.WriteString(quoteIfNeeded(arg))
		b.WriteByte('\n')
	}
	return a.writeMember("response.txt", []byte(b.String()))
}

// WriteVersionFile writes the version.txt member: the driver's reported
// version string.
func (a *Archive) WriteVersionFile(version string) error {
	return a.writeMember("version.txt", []byte(version+"\n"))
}

func (a *Archive) writeMember(name string, contents []byte) error {
	hdr := &tar.Header{
		Name: name,
		Mode: 0644,
		Size: int64(len(contents)),
	}
	if err := a.tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("reproduce: %w", err)
	}
	if _, err := a.tw.Write(contents); err != nil {
		return fmt.Errorf("reproduce: %w", err)
	}
	return nil
}

// Close flushes the tar trailer and closes the underlying file.
func (a *Archive) Close() error {
	if err := a.tw.Close(); err != nil {
		a.f.Close()
		return fmt.Errorf("reproduce: %w", err)
	}
	return a.f.Close()
}

func quoteIfNeeded(s string) string {
	if s == "" {
		return "''"
	}
	if !strings.ContainsAny(s, " \t\n'\"\\$") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
