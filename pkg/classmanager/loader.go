package classmanager

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/igor-laevsky/gojvm-core/pkg/classfile"
	"github.com/igor-laevsky/gojvm-core/pkg/vmerrors"
)

// JmodLoader loads classes out of a JDK-style jmod archive: a zip file
// prefixed with a 4-byte "JM\x01\x00" header before the zip's own central
// directory.
type JmodLoader struct {
	JmodPath string

	zipData   []byte
	zipReader *zip.Reader
}

// NewJmodLoader creates a loader for the jmod archive at path. The archive
// is not opened until the first LoadClass call.
func NewJmodLoader(path string) *JmodLoader {
	return &JmodLoader{JmodPath: path}
}

func (l *JmodLoader) ensureZipReader() error {
	if l.zipReader != nil {
		return nil
	}

	f, err := os.Open(l.JmodPath)
	if err != nil {
		return vmerrors.NewClassNotFoundError(fmt.Sprintf("opening jmod %s: %v", l.JmodPath, err))
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return vmerrors.NewClassNotFoundError(fmt.Sprintf("stat jmod %s: %v", l.JmodPath, err))
	}

	data := make([]byte, stat.Size())
	if _, err := io.ReadFull(f, data); err != nil {
		return vmerrors.NewClassNotFoundError(fmt.Sprintf("reading jmod %s: %v", l.JmodPath, err))
	}

	l.zipData = data[4:] // skip the "JM\x01\x00" header
	reader, err := zip.NewReader(bytes.NewReader(l.zipData), int64(len(l.zipData)))
	if err != nil {
		return vmerrors.NewClassNotFoundError(fmt.Sprintf("opening jmod zip %s: %v", l.JmodPath, err))
	}
	l.zipReader = reader
	return nil
}

// LoadClass locates name's bytes inside the jmod's classes/ directory and
// registers them with mgr.
func (l *JmodLoader) LoadClass(name string, mgr *ClassManager) error {
	if err := l.ensureZipReader(); err != nil {
		return err
	}

	target := "classes/" + name + ".class"
	for _, file := range l.zipReader.File {
		if file.Name != target {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return vmerrors.NewClassNotFoundError(fmt.Sprintf("opening %s in %s: %v", target, l.JmodPath, err))
		}
		defer rc.Close()

		data, err := io.ReadAll(rc)
		if err != nil {
			return vmerrors.NewClassNotFoundError(fmt.Sprintf("reading %s in %s: %v", target, l.JmodPath, err))
		}

		_, err = mgr.DefineClass(name, data, l)
		return err
	}

	return vmerrors.NewClassNotFoundError(name)
}

// DeriveClass parses raw class-file bytes. Shared verbatim with DirLoader:
// the two loaders differ only in where they find the bytes, not in how they
// decode them.
func (l *JmodLoader) DeriveClass(data []byte) (*classfile.Class, error) {
	return classfile.Decode(bytes.NewReader(data))
}

// DirLoader loads classes from a directory on the classpath, delegating to
// a parent loader first (mirroring user-classloader delegation: the
// bootstrap jmod loader sees a name before any user directory does).
type DirLoader struct {
	Root   string
	Parent Loader
}

// NewDirLoader creates a loader rooted at dir, falling back to parent when
// dir does not contain the requested class.
func NewDirLoader(dir string, parent Loader) *DirLoader {
	return &DirLoader{Root: dir, Parent: parent}
}

func (l *DirLoader) LoadClass(name string, mgr *ClassManager) error {
	if l.Parent != nil {
		if err := l.Parent.LoadClass(name, mgr); err == nil {
			return nil
		}
	}

	path := filepath.Join(l.Root, name+".class")
	data, err := os.ReadFile(path)
	if err != nil {
		return vmerrors.NewClassNotFoundError(name)
	}

	_, err = mgr.DefineClass(name, data, l)
	return err
}

func (l *DirLoader) DeriveClass(data []byte) (*classfile.Class, error) {
	return classfile.Decode(bytes.NewReader(data))
}
