package output

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
)

// CopyTree recursively copies src into the tree root, preserving relative
// paths and file modes. Every copied file is recorded as static. A missing
// src is a no-op.
func (t *Tree) CopyTree(src string) (int, error) {
	info, err := os.Stat(src)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, ferrors.WrapError(err, ferrors.CategoryFileSystem, "stat static directory").
			WithContext("path", src).Fatal().Build()
	}
	if !info.IsDir() {
		return 0, ferrors.FileSystemError("static path is not a directory").
			WithContext("path", src).Fatal().Build()
	}

	count := 0
	err = copyDir(src, t.root, func(srcPath, dstPath string, size int64) {
		rel, _ := filepath.Rel(t.root, dstPath)
		t.Record(File{Path: filepath.ToSlash(rel), Kind: KindStatic, Size: size, Source: srcPath})
		count++
	})
	if err != nil {
		return count, ferrors.WrapError(err, ferrors.CategoryFileSystem, "copy static directory").
			WithContext("path", src).Fatal().Build()
	}
	return count, nil
}

// copyDir recursively copies a directory tree, calling onFile after each file.
func copyDir(src, dst string, onFile func(srcPath, dstPath string, size int64)) error {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dst, srcInfo.Mode().Perm()|0o700); err != nil {
		return err
	}

	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		srcPath := filepath.Join(src, entry.Name())
		dstPath := filepath.Join(dst, entry.Name())

		if entry.IsDir() {
			if err := copyDir(srcPath, dstPath, onFile); err != nil {
				return err
			}
			continue
		}
		if !entry.Type().IsRegular() {
			continue
		}
		size, err := copyFile(srcPath, dstPath)
		if err != nil {
			return err
		}
		onFile(srcPath, dstPath, size)
	}
	return nil
}

// copyFile copies a single file from src to dst, preserving permissions.
func copyFile(src, dst string) (int64, error) {
	srcFile, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = srcFile.Close()
	}()

	dstFile, err := os.Create(dst)
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = dstFile.Close()
	}()

	n, err := io.Copy(dstFile, srcFile)
	if err != nil {
		return n, err
	}

	srcInfo, err := srcFile.Stat()
	if err != nil {
		return n, err
	}
	return n, os.Chmod(dst, srcInfo.Mode())
}
