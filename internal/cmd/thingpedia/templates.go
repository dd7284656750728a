package thingpedia

import (
	"embed"
	"fmt"
	"strings"
)

//go:embed templates/*.json
var templateFS embed.FS

// Device classes offered by the template command.
const (
	ClassPhysical = "physical"
	ClassOnline   = "online"
	ClassData     = "data"
)

// Template returns the starting descriptor for a new device of class,
// named after org.
func Template(class, org string) (string, error) {
	var file string
	switch class {
	case "", ClassPhysical, ClassData:
		file = "templates/physical.json"
	case ClassOnline:
		file = "templates/online.json"
	default:
		return "", fmt.Errorf("invalid device class %q (want %s, %s or %s)", class, ClassPhysical, ClassOnline, ClassData)
	}
	data, err := templateFS.ReadFile(file)
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(string(data), "%s", org), nil
}
