package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// SaveRun updates the run section in the config file.
// This preserves comments and formatting in other sections by using yaml.Node.
func SaveRun(configPath string, run RunConfig) error {
	// Read existing file content
	data, err := os.ReadFile(configPath) //#nosec G304 -- path comes from config resolution
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading config: %w", err)
	}

	// Parse into yaml.Node to preserve comments
	var doc yaml.Node
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("parsing config: %w", err)
		}
	}

	runNode, err := buildRunNode(run)
	if err != nil {
		return fmt.Errorf("building run node: %w", err)
	}

	// Update or create the run section
	if doc.Kind == 0 {
		// Empty or new file - create document structure
		doc = yaml.Node{
			Kind: yaml.DocumentNode,
			Content: []*yaml.Node{
				{
					Kind: yaml.MappingNode,
					Content: []*yaml.Node{
						{Kind: yaml.ScalarNode, Value: "run"},
						runNode,
					},
				},
			},
		}
	} else if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
		root := doc.Content[0]
		if root.Kind == yaml.MappingNode {
			// Find and replace run key, or append it
			found := false
			for i := 0; i < len(root.Content)-1; i += 2 {
				if root.Content[i].Value == "run" {
					root.Content[i+1] = runNode
					found = true
					break
				}
			}
			if !found {
				root.Content = append(root.Content,
					&yaml.Node{Kind: yaml.ScalarNode, Value: "run"},
					runNode,
				)
			}
		}
	}

	// Marshal back to YAML
	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(&doc); err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	_ = encoder.Close()

	// Write atomically (write to temp, then rename)
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	temp, err := os.CreateTemp(dir, ".corral.yaml.tmp.*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tempPath := temp.Name()

	if _, err := temp.Write(buf.Bytes()); err != nil {
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

	return nil
}

// buildRunNode creates a yaml.Node representing the run section.
// Zero values are omitted so the saved section stays minimal.
func buildRunNode(run RunConfig) (*yaml.Node, error) {
	node := &yaml.Node{
		Kind:    yaml.MappingNode,
		Content: make([]*yaml.Node, 0),
	}

	addScalar := func(key, value string) {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: key},
			&yaml.Node{Kind: yaml.ScalarNode, Value: value},
		)
	}
	addList := func(key string, values []string) {
		seq := &yaml.Node{Kind: yaml.SequenceNode, Content: make([]*yaml.Node, 0, len(values))}
		for _, v := range values {
			seq.Content = append(seq.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: v})
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: key},
			seq,
		)
	}

	if run.CLIPath != "" {
		addScalar("cli_path", run.CLIPath)
	}
	if run.Model != "" {
		addScalar("model", run.Model)
	}
	if run.PermissionMode != "" {
		addScalar("permission_mode", run.PermissionMode)
	}
	if run.SystemPrompt != "" {
		addScalar("system_prompt", run.SystemPrompt)
	}
	if len(run.AllowedTools) > 0 {
		addList("allowed_tools", run.AllowedTools)
	}
	if len(run.DisallowedTools) > 0 {
		addList("disallowed_tools", run.DisallowedTools)
	}
	if run.WorkDir != "" {
		addScalar("work_dir", run.WorkDir)
	}
	if len(run.Env) > 0 {
		envNode := &yaml.Node{Kind: yaml.MappingNode, Content: make([]*yaml.Node, 0, len(run.Env)*2)}
		for k, v := range run.Env {
			envNode.Content = append(envNode.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Value: k},
				&yaml.Node{Kind: yaml.ScalarNode, Value: v},
			)
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: "env"},
			envNode,
		)
	}
	if run.Timeout > 0 {
		addScalar("timeout", run.Timeout.String())
	}
	if run.MCPConfig != "" {
		addScalar("mcp_config", run.MCPConfig)
	}
	if run.SchemaPath != "" {
		addScalar("schema_path", run.SchemaPath)
	}

	return node, nil
}

// SetModel updates only the model in the saved run section.
func SetModel(configPath string, run RunConfig, model string) error {
	run.Model = model
	return SaveRun(configPath, run)
}

// AddAllowedTool appends a tool to the allowed list and saves.
// Duplicate entries are ignored.
func AddAllowedTool(configPath string, run RunConfig, tool string) error {
	if tool == "" {
		return fmt.Errorf("tool name must not be empty")
	}
	for _, t := range run.AllowedTools {
		if t == tool {
			return nil // Already present
		}
	}
	run.AllowedTools = append(run.AllowedTools, tool)
	return SaveRun(configPath, run)
}
