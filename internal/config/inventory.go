package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// InventoryLocations are the places cp-ansible inventories keep the broker
// custom properties, tried in order.
var InventoryLocations = []string{
	"/all/vars/kafka_broker_custom_properties",
	"/kafka_broker/vars/kafka_broker_custom_properties",
}

// LoadInventoryFile reads the ldap.* broker properties from an Ansible
// inventory file.
func LoadInventoryFile(path string) (Properties, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read inventory file: %w", err)
	}
	props, err := ParseInventory(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return props, nil
}

// ParseInventory extracts the ldap.* entries of the first custom properties
// mapping found at one of InventoryLocations.
func ParseInventory(data []byte) (Properties, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("invalid inventory YAML: %w", err)
	}

	var node *yaml.Node
	for _, location := range InventoryLocations {
		if node = lookupPointer(&root, location); node != nil {
			break
		}
	}
	if node == nil {
		return nil, fmt.Errorf("cannot find 'kafka_broker_custom_properties' under [%s]",
			strings.Join(InventoryLocations, ", "))
	}

	props := make(Properties)
	if node.Kind != yaml.MappingNode {
		return props, nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		if !strings.HasPrefix(key.Value, "ldap.") {
			continue
		}
		props[key.Value] = scalarText(value)
	}
	return props, nil
}

// lookupPointer resolves a JSON-pointer style path of mapping keys.
func lookupPointer(root *yaml.Node, pointer string) *yaml.Node {
	node := root
	if node.Kind == yaml.DocumentNode {
		if len(node.Content) == 0 {
			return nil
		}
		node = node.Content[0]
	}

	for _, segment := range strings.Split(strings.TrimPrefix(pointer, "/"), "/") {
		node = mappingValue(resolveAlias(node), segment)
		if node == nil {
			return nil
		}
	}
	return resolveAlias(node)
}

func mappingValue(node *yaml.Node, key string) *yaml.Node {
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}

func resolveAlias(node *yaml.Node) *yaml.Node {
	for node != nil && node.Kind == yaml.AliasNode {
		node = node.Alias
	}
	return node
}

// scalarText renders a value the way it is written; collections have no text.
func scalarText(node *yaml.Node) string {
	node = resolveAlias(node)
	if node == nil || node.Kind != yaml.ScalarNode || node.Tag == "!!null" {
		return ""
	}
	return node.Value
}
