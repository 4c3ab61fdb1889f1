package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/zjrosen/markspan/internal/log"
)

// Keys lists every settable configuration key in dotted form.
func Keys() []string {
	return []string{
		"input",
		"output.html",
		"output.tokens",
		"output.tokens_format",
		"rewrite.annotation",
		"rewrite.math",
		"rewrite.strategy",
		"render.escape",
		"render.xhtml",
		"preview.style",
		"preview.width",
		"watch.debounce",
		"cache.enabled",
		"cache.expiration",
		"log.enabled",
		"log.path",
		"log.level",
		"tracing.enabled",
		"tracing.exporter",
		"tracing.file_path",
		"tracing.otlp_endpoint",
		"tracing.sample_rate",
	}
}

// UpdateValue sets the dotted key to value in the YAML document data and
// returns the new document. Comments and the order of existing keys are
// preserved; missing sections are appended.
func UpdateValue(data []byte, key, value string) ([]byte, error) {
	if !slices.Contains(Keys(), key) {
		return nil, fmt.Errorf("unknown config key %q", key)
	}

	var doc yaml.Node
	if len(bytes.TrimSpace(data)) > 0 {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}
	if doc.Kind == 0 {
		doc = yaml.Node{
			Kind:    yaml.DocumentNode,
			Content: []*yaml.Node{{Kind: yaml.MappingNode}},
		}
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("config root must be a mapping")
	}

	path := strings.Split(key, ".")
	node := root
	for _, part := range path[:len(path)-1] {
		child := lookup(node, part)
		if child == nil {
			child = &yaml.Node{Kind: yaml.MappingNode}
			node.Content = append(node.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: part}, child)
		}
		if child.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("config key %q is not a section", part)
		}
		node = child
	}

	last := path[len(path)-1]
	if scalar := lookup(node, last); scalar != nil {
		scalar.Kind = yaml.ScalarNode
		scalar.Tag = ""
		scalar.Style = 0
		scalar.Value = value
		scalar.Content = nil
	} else {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: last},
			&yaml.Node{Kind: yaml.ScalarNode, Value: value},
		)
	}

	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(&doc); err != nil {
		return nil, fmt.Errorf("marshaling config: %w", err)
	}
	_ = encoder.Close()
	return buf.Bytes(), nil
}

func lookup(mapping *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return mapping.Content[i+1]
		}
	}
	return nil
}

// SaveValue updates one key in the config file at configPath. check, when
// non-nil, sees the updated document before it is written and can reject it.
func SaveValue(configPath, key, value string, check func([]byte) error) error {
	data, err := os.ReadFile(configPath) //nolint:gosec // G304: path is the user's config file
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading config: %w", err)
	}

	updated, err := UpdateValue(data, key, value)
	if err != nil {
		return err
	}
	if check != nil {
		if err := check(updated); err != nil {
			return err
		}
	}

	// Write atomically (write to temp, then rename)
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	temp, err := os.CreateTemp(dir, ".markspan.yaml.tmp.*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tempPath := temp.Name()

	if _, err := temp.Write(updated); err != nil {
		_ = temp.Close()
		_ = os.Remove(tempPath)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := temp.Close(); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tempPath, configPath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}

	log.Info(log.CatConfig, "Updated config value", "path", configPath, "key", key)
	return nil
}
