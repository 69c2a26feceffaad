package utils

import (
	"os"
	"path/filepath"
	"strings"
)

func EnsureDir(path string) (err error) {
	err = os.MkdirAll(path, os.ModePerm)
	return
}

func GetFilenameWithoutExt(path string) (name string) {
	name = filepath.Base(path)
	name = strings.TrimSuffix(name, filepath.Ext(path))
	return
}
