package supervisor

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/JamesKayten/SimpleCP-AIM-test-sub000/internal/errors"
)

// systemInterpreters are fixed fallback paths checked after the project
// virtual environment and before a bare $PATH lookup.
var systemInterpreters = []string{
	"/usr/local/bin/python3",
	"/opt/homebrew/bin/python3",
	"/usr/bin/python3",
}

// venvInterpreters are project-local virtual environment locations, checked
// first, relative to the project root.
var venvInterpreters = []string{
	".venv/bin/python",
	"venv/bin/python",
}

// scriptCandidates are backend entry script locations relative to the
// project root.
var scriptCandidates = []string{
	"backend/main.py",
	"backend/server.py",
	"main.py",
}

// DiscoverInterpreter locates a runnable Python interpreter. Discovery
// order: explicit override, project virtual environment, fixed system
// paths, then $PATH. A missing interpreter is a fatal configuration error.
func DiscoverInterpreter(projectRoot, override string) (string, error) {
	if override != "" {
		if isExecutable(override) {
			return override, nil
		}
		return "", errors.NewConfiguration(fmt.Sprintf("configured interpreter not runnable: %s", override))
	}

	for _, rel := range venvInterpreters {
		candidate := filepath.Join(projectRoot, rel)
		if isExecutable(candidate) {
			return candidate, nil
		}
	}
	for _, candidate := range systemInterpreters {
		if isExecutable(candidate) {
			return candidate, nil
		}
	}
	if path, err := exec.LookPath("python3"); err == nil {
		return path, nil
	}
	return "", errors.NewConfiguration("no python interpreter found (checked project venv, system paths, $PATH)")
}

// DiscoverScript locates the backend entry script. A missing script is a
// fatal configuration error.
func DiscoverScript(projectRoot, override string) (string, error) {
	if override != "" {
		if isRegularFile(override) {
			return override, nil
		}
		return "", errors.NewConfiguration(fmt.Sprintf("configured backend script not found: %s", override))
	}

	for _, rel := range scriptCandidates {
		candidate := filepath.Join(projectRoot, rel)
		if isRegularFile(candidate) {
			return candidate, nil
		}
	}
	return "", errors.NewConfiguration(fmt.Sprintf("no backend entry script found under %s", projectRoot))
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return info.Mode()&0111 != 0
}

func isRegularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
