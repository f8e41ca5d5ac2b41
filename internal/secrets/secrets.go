// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads credentials from a directory of plain-text files.
// Each file in the directory represents one secret: the filename is the key
// name and the file contents (trimmed) are the value.
//
// Recognized key files: email, pmc-api-key, llm-api-key.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/viper"
)

// Secrets maps key file names to their trimmed contents.
type Secrets map[string]string

// configKeys maps recognized key files to the configuration keys they fill.
var configKeys = map[string]string{
	"email":       "entrez.email",
	"pmc-api-key": "entrez.api_key",
	"llm-api-key": "llm.api_key",
}

// Load reads all files in dir. A missing directory is not an error; Load
// returns empty Secrets. Unreadable files produce a warning on stderr but
// do not abort.
func Load(dir string) (Secrets, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return Secrets{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	s := make(Secrets)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not read secret %s: %v\n", name, err)
			continue
		}

		if value := strings.TrimSpace(string(data)); value != "" {
			s[name] = value
		}
	}

	return s, nil
}

// Keys returns the loaded key names in sorted order.
func (s Secrets) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Fill sets configuration values from recognized secrets. Values already
// provided by flags, env or the config file take precedence.
func (s Secrets) Fill(v *viper.Viper) {
	for file, key := range configKeys {
		value, ok := s[file]
		if !ok || v.GetString(key) != "" {
			continue
		}
		v.Set(key, value)
	}
}
